package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.EnrollmentRequest, error)
	Create(ctx context.Context, request *models.EnrollmentRequest) error
	Reopen(ctx context.Context, id string, requestedAt time.Time) error
	SetReview(ctx context.Context, id string, status models.EnrollmentStatus, reviewedAt time.Time, reviewedBy string) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error)
	ListPendingByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error)
	ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
	AddStudent(ctx context.Context, entry models.CourseStudent) error
}

type enrollmentMetrics interface {
	RecordEnrollmentReview(decision string)
}

// EnrollmentService drives the request/review workflow that moves students
// onto course rosters. Each (student, course) pair owns a single request row;
// resubmission after rejection reopens that row rather than creating a
// second one.
type EnrollmentService struct {
	requests enrollmentRepository
	courses  enrollmentCourseRepository
	cache    summaryCacheInvalidator
	metrics  enrollmentMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(requests enrollmentRepository, courses enrollmentCourseRepository, cache summaryCacheInvalidator, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{requests: requests, courses: courses, cache: cache, logger: logger, now: time.Now}
}

// WithMetrics attaches an optional metrics recorder.
func (s *EnrollmentService) WithMetrics(metrics enrollmentMetrics) *EnrollmentService {
	s.metrics = metrics
	return s
}

// Request files the caller's enrollment request for a course. A rejected
// request is reopened as pending; pending and approved requests refuse a
// duplicate.
func (s *EnrollmentService) Request(ctx context.Context, caller models.Caller, courseID string) (*models.EnrollmentRequest, error) {
	if !caller.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request enrollment")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is not open for enrollment")
	}

	existing, err := s.requests.FindByStudentAndCourse(ctx, caller.ID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load enrollment request")
	}

	if existing != nil {
		switch existing.Status {
		case models.EnrollmentStatusPending:
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment request already pending")
		case models.EnrollmentStatusApproved:
			return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
		case models.EnrollmentStatusRejected:
			requestedAt := s.now().UTC()
			if err := s.requests.Reopen(ctx, existing.ID, requestedAt); err != nil {
				return nil, appErrors.Internal(err, "failed to reopen enrollment request")
			}
			existing.Status = models.EnrollmentStatusPending
			existing.RequestedAt = requestedAt
			existing.ReviewedAt = nil
			existing.ReviewedBy = nil
			s.logger.Info("enrollment request reopened", zap.String("request_id", existing.ID))
			return existing, nil
		}
	}

	request := &models.EnrollmentRequest{
		StudentID:       caller.ID,
		StudentName:     caller.FullName,
		StudentUsername: caller.Username,
		CourseID:        course.ID,
		CourseName:      course.CourseName,
		CourseCode:      course.CourseCode,
		InstructorID:    course.InstructorID,
		InstructorName:  course.InstructorName,
		Status:          models.EnrollmentStatusPending,
		RequestedAt:     s.now().UTC(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Internal(err, "failed to create enrollment request")
	}
	s.logger.Info("enrollment requested",
		zap.String("request_id", request.ID),
		zap.String("course_id", course.ID))
	return request, nil
}

// Review records the instructor's decision on a pending request. Approval
// appends the student to the course's enrolled-student set.
func (s *EnrollmentService) Review(ctx context.Context, caller models.Caller, requestID string, action models.ReviewAction) (*models.EnrollmentRequest, error) {
	if !caller.Role.CanInstruct() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors may review enrollment requests")
	}
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment request")
	}
	if request.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another instructor's course")
	}
	if request.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending requests can be reviewed")
	}

	status := models.EnrollmentStatusRejected
	if action == models.ReviewActionApprove {
		status = models.EnrollmentStatusApproved
	}
	reviewedAt := s.now().UTC()
	if err := s.requests.SetReview(ctx, request.ID, status, reviewedAt, caller.FullName); err != nil {
		return nil, appErrors.Internal(err, "failed to record review")
	}

	if status == models.EnrollmentStatusApproved {
		entry := models.CourseStudent{
			CourseID:    request.CourseID,
			StudentID:   request.StudentID,
			StudentName: request.StudentName,
			EnrolledAt:  reviewedAt,
		}
		if err := s.courses.AddStudent(ctx, entry); err != nil {
			return nil, appErrors.Internal(err, "failed to add student to course")
		}
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, summaryCacheKey(request.CourseID)); err != nil {
				s.logger.Warn("failed to invalidate summary cache", zap.Error(err))
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordEnrollmentReview(string(action))
	}

	request.Status = status
	request.ReviewedAt = &reviewedAt
	reviewedBy := caller.FullName
	request.ReviewedBy = &reviewedBy
	s.logger.Info("enrollment request reviewed",
		zap.String("request_id", request.ID),
		zap.String("status", string(status)))
	return request, nil
}

// ListMine returns the caller's own requests, newest first.
func (s *EnrollmentService) ListMine(ctx context.Context, caller models.Caller) ([]models.EnrollmentRequest, error) {
	if !caller.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have enrollment requests")
	}
	requests, err := s.requests.ListByStudent(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollment requests")
	}
	return requests, nil
}

// ListEnrolledCourses returns the courses the caller holds an approved
// enrollment for.
func (s *EnrollmentService) ListEnrolledCourses(ctx context.Context, caller models.Caller) ([]models.Course, error) {
	if !caller.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have enrolled courses")
	}
	courseIDs, err := s.requests.ApprovedCourseIDs(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve approved enrollments")
	}
	if len(courseIDs) == 0 {
		return []models.Course{}, nil
	}
	courses, err := s.courses.ListByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrolled courses")
	}
	return courses, nil
}

// ListForInstructor returns requests across the caller's courses, optionally
// narrowed to pending ones.
func (s *EnrollmentService) ListForInstructor(ctx context.Context, caller models.Caller, pendingOnly bool) ([]models.EnrollmentRequest, error) {
	if !caller.Role.CanInstruct() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors may list course requests")
	}
	var (
		requests []models.EnrollmentRequest
		err      error
	)
	if pendingOnly {
		requests, err = s.requests.ListPendingByInstructor(ctx, caller.ID)
	} else {
		requests, err = s.requests.ListByInstructor(ctx, caller.ID)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollment requests")
	}
	return requests, nil
}
