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

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "course_name", "course_code", "description", "credits", "instructor_id", "instructor_name", "status", "created_at", "updated_at",
	})
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("course-1", "Algorithms", "CS201", "Core algorithms course", 3, "lec-1", "Dr. Boateng", models.CourseStatusActive, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_name, course_code")).
		WithArgs("course-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "CS201", course.CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("course-1", "Algorithms", "CS201", "", 3, "lec-1", "Dr. Boateng", models.CourseStatusActive, time.Now(), time.Now()).
		AddRow("course-2", "Databases", "CS305", "", 3, "lec-1", "Dr. Boateng", models.CourseStatusActive, time.Now(), time.Now())
	mock.ExpectQuery("WHERE id IN").
		WithArgs("course-1", "course-2").
		WillReturnRows(rows)

	courses, err := repo.ListByIDs(context.Background(), []string{"course-1", "course-2"})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestCourseRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE course_code = $1")).
		WithArgs("CS201").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByCode(context.Background(), "CS201")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE course_code = $1")).
		WithArgs("CS999").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByCode(context.Background(), "CS999")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{
		CourseName:     "Algorithms",
		CourseCode:     "CS201",
		Credits:        3,
		InstructorID:   "lec-1",
		InstructorName: "Dr. Boateng",
	}
	require.NoError(t, repo.Create(context.Background(), course))
	require.NotEmpty(t, course.ID)
	require.Equal(t, models.CourseStatusActive, course.Status)
	require.False(t, course.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	name := "Advanced Algorithms"
	credits := 4
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET course_name = $1, credits = $2, updated_at = $3 WHERE id = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "course-1", models.CourseUpdate{
		CourseName: &name,
		Credits:    &credits,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	require.NoError(t, repo.Update(context.Background(), "course-1", models.CourseUpdate{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE session_id IN")).
		WithArgs("course-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE course_id = $1")).
		WithArgs("course-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollment_requests WHERE course_id = $1")).
		WithArgs("course-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_students WHERE course_id = $1")).
		WithArgs("course-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("course-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "course-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAddStudentIdempotent(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	enrolledAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_students")).
		WithArgs("course-1", "stu-1", "Ama Mensah", enrolledAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddStudent(context.Background(), models.CourseStudent{
		CourseID:    "course-1",
		StudentID:   "stu-1",
		StudentName: "Ama Mensah",
		EnrolledAt:  enrolledAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
