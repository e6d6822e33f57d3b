package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id string, update models.CourseUpdate) error
	DeleteCascade(ctx context.Context, id string) error
	EnrolledStudents(ctx context.Context, courseID string) ([]models.CourseStudent, error)
}

type summaryCacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	CourseName  string `json:"course_name" validate:"required,min=3,max=120"`
	CourseCode  string `json:"course_code" validate:"required"`
	Description string `json:"description" validate:"max=1000"`
	Credits     int    `json:"credits" validate:"required,min=1,max=6"`
}

var courseCodePattern = regexp.MustCompile(`^[A-Z]{2,4}\d{3}$`)

// CourseService orchestrates the course registry. Courses are owned
// exclusively by the instructor who created them.
type CourseService struct {
	courses   courseRepository
	cache     summaryCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseRepository, cache summaryCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, cache: cache, validator: validate, logger: logger}
}

// Create registers a new course owned by the caller.
func (s *CourseService) Create(ctx context.Context, caller models.Caller, req CreateCourseRequest) (*models.Course, error) {
	if !caller.Role.CanInstruct() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors may create courses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.CourseCode))
	if !courseCodePattern.MatchString(code) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code must be 2-4 uppercase letters followed by 3 digits")
	}

	exists, err := s.courses.ExistsByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", code))
	}

	course := &models.Course{
		CourseName:     strings.TrimSpace(req.CourseName),
		CourseCode:     code,
		Description:    strings.TrimSpace(req.Description),
		Credits:        req.Credits,
		InstructorID:   caller.ID,
		InstructorName: caller.FullName,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("course_code", code))
	course.EnrolledStudents = []models.CourseStudent{}
	return course, nil
}

// List returns courses scoped to the caller: instructors see the courses
// they own, students see the full catalogue.
func (s *CourseService) List(ctx context.Context, caller models.Caller) ([]models.Course, error) {
	var (
		courses []models.Course
		err     error
	)
	if caller.Role.CanInstruct() {
		courses, err = s.courses.ListByInstructor(ctx, caller.ID)
	} else {
		courses, err = s.courses.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	for i := range courses {
		students, err := s.courses.EnrolledStudents(ctx, courses[i].ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load enrolled students")
		}
		courses[i].EnrolledStudents = students
	}
	return courses, nil
}

// Get returns a single course with its enrolled-student set.
func (s *CourseService) Get(ctx context.Context, caller models.Caller, id string) (*models.Course, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	students, err := s.courses.EnrolledStudents(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrolled students")
	}
	course.EnrolledStudents = students
	return course, nil
}

// Update applies a partial update. Only the owning instructor may update.
func (s *CourseService) Update(ctx context.Context, caller models.Caller, id string, update models.CourseUpdate) (*models.Course, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if update.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	if update.Status != nil {
		status := models.CourseStatus(strings.TrimSpace(*update.Status))
		if status != models.CourseStatusActive && status != models.CourseStatusArchived {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be active or archived")
		}
	}
	if update.Credits != nil && (*update.Credits < 1 || *update.Credits > 6) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "credits must be between 1 and 6")
	}
	if err := s.courses.Update(ctx, id, update); err != nil {
		return nil, appErrors.Internal(err, "failed to update course")
	}
	return s.Get(ctx, caller, id)
}

// Delete removes the course and everything hanging off it: sessions,
// attendance records, enrollment requests and the enrolled-student set.
func (s *CourseService) Delete(ctx context.Context, caller models.Caller, id string) error {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return err
	}
	if course.InstructorID != caller.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if err := s.courses.DeleteCascade(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete course")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, summaryCacheKey(id)); err != nil {
			s.logger.Warn("failed to invalidate summary cache", zap.Error(err))
		}
	}
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) findCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

func summaryCacheKey(courseID string) string {
	return fmt.Sprintf("summary:course:%s", courseID)
}
