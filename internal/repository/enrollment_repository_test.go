package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kwabena-dev/courseattend-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "student_name", "student_username", "course_id", "course_name", "course_code",
		"instructor_id", "instructor_name", "status", "requested_at", "reviewed_at", "reviewed_by",
	})
}

func TestEnrollmentRepositoryFindByStudentAndCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow("req-1", "stu-1", "Ama Mensah", "ama", "course-1", "Algorithms", "CS201", "lec-1", "Dr. Boateng", models.EnrollmentStatusPending, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name")).
		WithArgs("stu-1", "course-1").
		WillReturnRows(rows)

	request, err := repo.FindByStudentAndCourse(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, "req-1", request.ID)
	require.Equal(t, models.EnrollmentStatusPending, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.EnrollmentRequest{
		StudentID: "stu-1",
		CourseID:  "course-1",
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.EnrollmentStatusPending, request.Status)
	require.False(t, request.RequestedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReopenClearsReview(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	requestedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_requests")).
		WithArgs("req-1", models.EnrollmentStatusPending, requestedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reopen(context.Background(), "req-1", requestedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetReview(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	reviewedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_requests SET status = $2, reviewed_at = $3, reviewed_by = $4 WHERE id = $1")).
		WithArgs("req-1", models.EnrollmentStatusApproved, reviewedAt, "Dr. Boateng").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetReview(context.Background(), "req-1", models.EnrollmentStatusApproved, reviewedAt, "Dr. Boateng"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsApproved(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollment_requests")).
		WithArgs("stu-1", "course-1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	approved, err := repo.IsApproved(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.True(t, approved)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollment_requests")).
		WithArgs("stu-2", "course-1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	approved, err = repo.IsApproved(context.Background(), "stu-2", "course-1")
	require.NoError(t, err)
	require.False(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListPendingByInstructor(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow("req-2", "stu-2", "Kofi Owusu", "kofi", "course-1", "Algorithms", "CS201", "lec-1", "Dr. Boateng", models.EnrollmentStatusPending, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name")).
		WithArgs("lec-1", models.EnrollmentStatusPending).
		WillReturnRows(rows)

	requests, err := repo.ListPendingByInstructor(context.Background(), "lec-1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-2", requests[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
