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

// SessionRepository handles persistence of class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, course_id, course_code, course_name, instructor_id, instructor_name, session_number,
        date, start_time, end_time, location, description, status, attendance_code, created_at, updated_at`

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByCode returns the session carrying the given attendance code.
func (r *SessionRepository) FindByCode(ctx context.Context, code string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE attendance_code = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, code); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExistsNumber checks (course, session_number) uniqueness.
func (r *SessionRepository) ExistsNumber(ctx context.Context, courseID string, number int) (bool, error) {
	const query = `SELECT 1 FROM sessions WHERE course_id = $1 AND session_number = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, number); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check session number: %w", err)
	}
	return true, nil
}

// Create persists a new session with an empty attendance set.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	const query = `INSERT INTO sessions (id, course_id, course_code, course_name, instructor_id, instructor_name, session_number,
        date, start_time, end_time, location, description, status, attendance_code, created_at, updated_at)
        VALUES (:id, :course_id, :course_code, :course_name, :instructor_id, :instructor_name, :session_number,
        :date, :start_time, :end_time, :location, :description, :status, :attendance_code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ListByInstructor returns the instructor's sessions with marked-attendance
// counts, most recent first.
func (r *SessionRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.SessionListItem, error) {
	query := fmt.Sprintf(`SELECT s.*, COUNT(a.student_id) AS total_students
        FROM (SELECT %s FROM sessions WHERE instructor_id = $1) s
        LEFT JOIN attendance_records a ON a.session_id = s.id
        GROUP BY %s
        ORDER BY s.date DESC, s.start_time DESC`, sessionColumns, groupColumns())
	var sessions []models.SessionListItem
	if err := r.db.SelectContext(ctx, &sessions, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor sessions: %w", err)
	}
	return sessions, nil
}

// ListByCourseIDs returns sessions for the given courses with counts, most
// recent first.
func (r *SessionRepository) ListByCourseIDs(ctx context.Context, courseIDs []string) ([]models.SessionListItem, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	base := fmt.Sprintf(`SELECT s.*, COUNT(a.student_id) AS total_students
        FROM (SELECT %s FROM sessions WHERE course_id IN (?)) s
        LEFT JOIN attendance_records a ON a.session_id = s.id
        GROUP BY %s
        ORDER BY s.date DESC, s.start_time DESC`, sessionColumns, groupColumns())
	query, args, err := sqlx.In(base, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build session course query: %w", err)
	}
	query = r.db.Rebind(query)
	var sessions []models.SessionListItem
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list course sessions: %w", err)
	}
	return sessions, nil
}

// ListForDate returns sessions of the given courses on a date restricted to
// the given statuses, ordered by start time.
func (r *SessionRepository) ListForDate(ctx context.Context, courseIDs []string, date string, statuses []models.SessionStatus) ([]models.Session, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	base := fmt.Sprintf(`SELECT %s FROM sessions WHERE course_id IN (?) AND date = ? AND status IN (?) ORDER BY start_time`, sessionColumns)
	query, args, err := sqlx.In(base, courseIDs, date, statuses)
	if err != nil {
		return nil, fmt.Errorf("build session date query: %w", err)
	}
	query = r.db.Rebind(query)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions for date: %w", err)
	}
	return sessions, nil
}

// CountByCourse returns the number of sessions recorded for a course.
func (r *SessionRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count course sessions: %w", err)
	}
	return total, nil
}

// UpdateStatus sets the session status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// UpdateDetails applies a partial update; only non-nil fields are touched.
func (r *SessionRepository) UpdateDetails(ctx context.Context, id string, update models.SessionUpdate) error {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if update.Date != nil {
		add("date", *update.Date)
	}
	if update.StartTime != nil {
		add("start_time", *update.StartTime)
	}
	if update.EndTime != nil {
		add("end_time", *update.EndTime)
	}
	if update.Location != nil {
		add("location", *update.Location)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)+1)
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session details: %w", err)
	}
	return nil
}

// UpdateCode replaces the session's attendance code.
func (r *SessionRepository) UpdateCode(ctx context.Context, id, code string) error {
	const query = `UPDATE sessions SET attendance_code = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("update attendance code: %w", err)
	}
	return nil
}

// Delete removes the session and its attendance records in one transaction.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session delete: %w", err)
	}
	return nil
}

func groupColumns() string {
	cols := strings.Split(sessionColumns, ",")
	for i, col := range cols {
		cols[i] = "s." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
