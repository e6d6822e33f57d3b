package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kwabena-dev/courseattend-api/internal/models"
)

// CourseRepository handles persistence of courses and their enrolled-student
// sets.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, course_name, course_code, description, credits, instructor_id, instructor_name, status, created_at, updated_at`

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks course-code uniqueness.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM courses WHERE course_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// ListAll returns every course, newest first.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses ORDER BY created_at DESC`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByInstructor returns courses owned by the instructor, newest first.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return courses, nil
}

// ListByIDs returns the courses matching the given ids.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM courses WHERE id IN (?)`, courseColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build course id query: %w", err)
	}
	query = r.db.Rebind(query)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	return courses, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	const query = `INSERT INTO courses (id, course_name, course_code, description, credits, instructor_id, instructor_name, status, created_at, updated_at)
        VALUES (:id, :course_name, :course_code, :description, :credits, :instructor_id, :instructor_name, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update applies a partial update; only non-nil fields are touched.
func (r *CourseRepository) Update(ctx context.Context, id string, update models.CourseUpdate) error {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if update.CourseName != nil {
		add("course_name", strings.TrimSpace(*update.CourseName))
	}
	if update.Description != nil {
		add("description", strings.TrimSpace(*update.Description))
	}
	if update.Credits != nil {
		add("credits", *update.Credits)
	}
	if update.Status != nil {
		add("status", strings.TrimSpace(*update.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE courses SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)+1)
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteCascade removes the course together with its sessions, attendance
// records, enrolled-student set and enrollment requests in one transaction.
func (r *CourseRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []string{
		`DELETE FROM attendance_records WHERE session_id IN (SELECT id FROM sessions WHERE course_id = $1)`,
		`DELETE FROM sessions WHERE course_id = $1`,
		`DELETE FROM enrollment_requests WHERE course_id = $1`,
		`DELETE FROM course_students WHERE course_id = $1`,
		`DELETE FROM courses WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("cascade course delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course delete: %w", err)
	}
	return nil
}

// EnrolledStudents returns the course's enrolled-student set in enrollment
// order.
func (r *CourseRepository) EnrolledStudents(ctx context.Context, courseID string) ([]models.CourseStudent, error) {
	const query = `SELECT course_id, student_id, student_name, enrolled_at
        FROM course_students WHERE course_id = $1 ORDER BY enrolled_at`
	var students []models.CourseStudent
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return students, nil
}

// AddStudent performs an idempotent set-insert into the enrolled-student set.
// Inserting an already-present student is a no-op.
func (r *CourseRepository) AddStudent(ctx context.Context, entry models.CourseStudent) error {
	const query = `INSERT INTO course_students (course_id, student_id, student_name, enrolled_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (course_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, entry.CourseID, entry.StudentID, entry.StudentName, entry.EnrolledAt); err != nil {
		return fmt.Errorf("add enrolled student: %w", err)
	}
	return nil
}
