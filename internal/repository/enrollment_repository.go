package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kwabena-dev/courseattend-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollment requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, student_name, student_username, course_id, course_name, course_code,
        instructor_id, instructor_name, status, requested_at, reviewed_at, reviewed_by`

// FindByID returns a request by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE id = $1`, enrollmentColumns)
	var request models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByStudentAndCourse returns the single request slot for the pair, or
// sql.ErrNoRows when the student never requested the course.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE student_id = $1 AND course_id = $2`, enrollmentColumns)
	var request models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &request, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create persists a new pending request.
func (r *EnrollmentRepository) Create(ctx context.Context, request *models.EnrollmentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollment_requests (id, student_id, student_name, student_username, course_id, course_name, course_code,
        instructor_id, instructor_name, status, requested_at, reviewed_at, reviewed_by)
        VALUES (:id, :student_id, :student_name, :student_username, :course_id, :course_name, :course_code,
        :instructor_id, :instructor_name, :status, :requested_at, :reviewed_at, :reviewed_by)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// Reopen transitions a rejected request back to pending, refreshing the
// request timestamp and clearing review fields.
func (r *EnrollmentRepository) Reopen(ctx context.Context, id string, requestedAt time.Time) error {
	const query = `UPDATE enrollment_requests
        SET status = $2, requested_at = $3, reviewed_at = NULL, reviewed_by = NULL
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusPending, requestedAt); err != nil {
		return fmt.Errorf("reopen enrollment request: %w", err)
	}
	return nil
}

// SetReview stamps the instructor's decision on a request.
func (r *EnrollmentRepository) SetReview(ctx context.Context, id string, status models.EnrollmentStatus, reviewedAt time.Time, reviewedBy string) error {
	const query = `UPDATE enrollment_requests SET status = $2, reviewed_at = $3, reviewed_by = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reviewedAt, reviewedBy); err != nil {
		return fmt.Errorf("review enrollment request: %w", err)
	}
	return nil
}

// ListByStudent returns all of a student's requests, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE student_id = $1 ORDER BY requested_at DESC`, enrollmentColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requests: %w", err)
	}
	return requests, nil
}

// ListByInstructor returns requests for every course owned by the instructor,
// newest first.
func (r *EnrollmentRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE instructor_id = $1 ORDER BY requested_at DESC`, enrollmentColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor requests: %w", err)
	}
	return requests, nil
}

// ListPendingByInstructor narrows ListByInstructor to pending requests.
func (r *EnrollmentRepository) ListPendingByInstructor(ctx context.Context, instructorID string) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE instructor_id = $1 AND status = $2 ORDER BY requested_at DESC`, enrollmentColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, instructorID, models.EnrollmentStatusPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ApprovedCourseIDs returns the ids of courses the student is approved for.
func (r *EnrollmentRepository) ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT course_id FROM enrollment_requests WHERE student_id = $1 AND status = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, models.EnrollmentStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved course ids: %w", err)
	}
	return ids, nil
}

// ListApprovedByCourse returns the approved requests for a course in request
// order, forming the course roster.
func (r *EnrollmentRepository) ListApprovedByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE course_id = $1 AND status = $2 ORDER BY requested_at`, enrollmentColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, courseID, models.EnrollmentStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved requests: %w", err)
	}
	return requests, nil
}

// IsApproved checks whether the student holds an approved enrollment for the
// course.
func (r *EnrollmentRepository) IsApproved(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollment_requests WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}
