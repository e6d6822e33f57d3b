package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	requests map[string]*models.EnrollmentRequest
	reopened []string
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	if r, ok := m.requests[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.EnrollmentRequest, error) {
	for _, r := range m.requests {
		if r.StudentID == studentID && r.CourseID == courseID {
			copy := *r
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, request *models.EnrollmentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]*models.EnrollmentRequest)
	}
	if request.ID == "" {
		request.ID = "req-new"
	}
	stored := *request
	m.requests[request.ID] = &stored
	return nil
}

func (m *mockEnrollmentRepo) Reopen(ctx context.Context, id string, requestedAt time.Time) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = models.EnrollmentStatusPending
	r.RequestedAt = requestedAt
	r.ReviewedAt = nil
	r.ReviewedBy = nil
	m.reopened = append(m.reopened, id)
	return nil
}

func (m *mockEnrollmentRepo) SetReview(ctx context.Context, id string, status models.EnrollmentStatus, reviewedAt time.Time, reviewedBy string) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	r.ReviewedAt = &reviewedAt
	r.ReviewedBy = &reviewedBy
	return nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error) {
	var list []models.EnrollmentRequest
	for _, r := range m.requests {
		if r.StudentID == studentID {
			list = append(list, *r)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error) {
	var list []models.EnrollmentRequest
	for _, r := range m.requests {
		if r.InstructorID == instructorID {
			list = append(list, *r)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListPendingByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error) {
	var list []models.EnrollmentRequest
	for _, r := range m.requests {
		if r.InstructorID == instructorID && r.Status == models.EnrollmentStatusPending {
			list = append(list, *r)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	for _, r := range m.requests {
		if r.StudentID == studentID && r.Status == models.EnrollmentStatusApproved {
			ids = append(ids, r.CourseID)
		}
	}
	return ids, nil
}

type mockEnrollmentCourses struct {
	courses map[string]*models.Course
	added   []models.CourseStudent
}

func (m *mockEnrollmentCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentCourses) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	var list []models.Course
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			list = append(list, *c)
		}
	}
	return list, nil
}

func (m *mockEnrollmentCourses) AddStudent(ctx context.Context, entry models.CourseStudent) error {
	m.added = append(m.added, entry)
	return nil
}

var (
	studentCaller  = models.Caller{ID: "stu-1", Username: "ama", FullName: "Ama Mensah", Role: models.RoleStudent}
	lecturerCaller = models.Caller{ID: "lec-1", Username: "boateng", FullName: "Dr. Boateng", Role: models.RoleLecturer}
)

func activeCourse() *models.Course {
	return &models.Course{
		ID:             "course-1",
		CourseName:     "Algorithms",
		CourseCode:     "CS201",
		InstructorID:   "lec-1",
		InstructorName: "Dr. Boateng",
		Status:         models.CourseStatusActive,
	}
}

func TestEnrollmentServiceRequestCreatesPending(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": activeCourse()}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	request, err := svc.Request(context.Background(), studentCaller, "course-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, request.Status)
	assert.Equal(t, "Ama Mensah", request.StudentName)
	assert.Equal(t, "CS201", request.CourseCode)
	assert.Equal(t, "lec-1", request.InstructorID)
}

func TestEnrollmentServiceRequestDuplicatePending(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusPending},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": activeCourse()}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	_, err := svc.Request(context.Background(), studentCaller, "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRequestAfterApproval(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": activeCourse()}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	_, err := svc.Request(context.Background(), studentCaller, "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceResubmitAfterRejectionReopensSameRequest(t *testing.T) {
	reviewedAt := time.Now().Add(-time.Hour)
	reviewedBy := "Dr. Boateng"
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {
			ID:        "req-1",
			StudentID: "stu-1", CourseID: "course-1",
			InstructorID: "lec-1",
			Status:       models.EnrollmentStatusRejected,
			ReviewedAt:   &reviewedAt, ReviewedBy: &reviewedBy,
		},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": activeCourse()}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	request, err := svc.Request(context.Background(), studentCaller, "course-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", request.ID)
	assert.Equal(t, models.EnrollmentStatusPending, request.Status)
	assert.Nil(t, request.ReviewedAt)
	assert.Nil(t, request.ReviewedBy)
	assert.Equal(t, []string{"req-1"}, repo.reopened)

	// the reopened request can be approved like any first-time request
	reviewed, err := svc.Review(context.Background(), lecturerCaller, "req-1", models.ReviewActionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, reviewed.Status)
	require.Len(t, courses.added, 1)
	assert.Equal(t, "stu-1", courses.added[0].StudentID)
}

func TestEnrollmentServiceRequestInstructorForbidden(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockEnrollmentCourses{}, nil, nil)
	_, err := svc.Request(context.Background(), lecturerCaller, "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRequestArchivedCourse(t *testing.T) {
	archived := activeCourse()
	archived.Status = models.CourseStatusArchived
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": archived}}
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, courses, nil, nil)

	_, err := svc.Request(context.Background(), studentCaller, "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReviewApproveAddsToRoster(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {
			ID: "req-1", StudentID: "stu-1", StudentName: "Ama Mensah",
			CourseID: "course-1", InstructorID: "lec-1",
			Status: models.EnrollmentStatusPending,
		},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{"course-1": activeCourse()}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	request, err := svc.Review(context.Background(), lecturerCaller, "req-1", models.ReviewActionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, request.Status)
	require.NotNil(t, request.ReviewedBy)
	assert.Equal(t, "Dr. Boateng", *request.ReviewedBy)
	require.Len(t, courses.added, 1)
	assert.Equal(t, "Ama Mensah", courses.added[0].StudentName)
}

func TestEnrollmentServiceReviewRejectSkipsRoster(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", StudentID: "stu-1", CourseID: "course-1", InstructorID: "lec-1", Status: models.EnrollmentStatusPending},
	}}
	courses := &mockEnrollmentCourses{}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	request, err := svc.Review(context.Background(), lecturerCaller, "req-1", models.ReviewActionReject)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, request.Status)
	assert.Empty(t, courses.added)
}

func TestEnrollmentServiceReviewOtherInstructor(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", InstructorID: "lec-other", Status: models.EnrollmentStatusPending},
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourses{}, nil, nil)

	_, err := svc.Review(context.Background(), lecturerCaller, "req-1", models.ReviewActionApprove)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReviewNonPending(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", InstructorID: "lec-1", Status: models.EnrollmentStatusApproved},
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourses{}, nil, nil)

	_, err := svc.Review(context.Background(), lecturerCaller, "req-1", models.ReviewActionApprove)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListEnrolledCourses(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", StudentID: studentCaller.ID, CourseID: "course-1", Status: models.EnrollmentStatusApproved},
		"req-2": {ID: "req-2", StudentID: studentCaller.ID, CourseID: "course-2", Status: models.EnrollmentStatusPending},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]*models.Course{
		"course-1": activeCourse(),
		"course-2": {ID: "course-2", CourseName: "Databases", CourseCode: "CS305"},
	}}
	svc := NewEnrollmentService(repo, courses, nil, nil)

	list, err := svc.ListEnrolledCourses(context.Background(), studentCaller)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "course-1", list[0].ID)

	// no approved enrollments yields an empty, non-nil slice
	other := models.Caller{ID: "stu-9", Role: models.RoleStudent}
	empty, err := svc.ListEnrolledCourses(context.Background(), other)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.ListEnrolledCourses(context.Background(), lecturerCaller)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListMineStudentOnly(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockEnrollmentCourses{}, nil, nil)
	_, err := svc.ListMine(context.Background(), lecturerCaller)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListForInstructorPendingFilter(t *testing.T) {
	repo := &mockEnrollmentRepo{requests: map[string]*models.EnrollmentRequest{
		"req-1": {ID: "req-1", InstructorID: "lec-1", Status: models.EnrollmentStatusPending},
		"req-2": {ID: "req-2", InstructorID: "lec-1", Status: models.EnrollmentStatusApproved},
	}}
	svc := NewEnrollmentService(repo, &mockEnrollmentCourses{}, nil, nil)

	pending, err := svc.ListForInstructor(context.Background(), lecturerCaller, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "req-1", pending[0].ID)

	all, err := svc.ListForInstructor(context.Background(), lecturerCaller, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
