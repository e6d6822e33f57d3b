package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kwabena-dev/courseattend-api/internal/models"
)

// AttendanceRepository handles persistence of attendance records. Records are
// keyed by (session_id, student_id); writes are atomic upserts so two
// concurrent markers cannot produce duplicates or lost updates for the same
// student.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `session_id, student_id, student_name, student_username, status, marked_at, marked_by, marked_by_name, method`

// FindBySessionAndStudent returns the single record for the pair, or
// sql.ErrNoRows.
func (r *AttendanceRepository) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE session_id = $1 AND student_id = $2`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySession returns all records of a session ordered by student name.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE session_id = $1 ORDER BY student_name`, attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return records, nil
}

// ListByStudent returns the student's records joined with session identity,
// most recent session first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentAttendanceEntry, error) {
	const query = `SELECT a.session_id, s.course_code, s.course_name, s.session_number, s.date, s.start_time, s.end_time,
        a.status, a.marked_at, a.marked_by
        FROM attendance_records a
        JOIN sessions s ON s.id = a.session_id
        WHERE a.student_id = $1
        ORDER BY s.date DESC, s.start_time DESC`
	var entries []models.StudentAttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return entries, nil
}

// ListByCourse returns every (session, student, status) tuple recorded across
// the course's sessions.
func (r *AttendanceRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error) {
	const query = `SELECT a.session_id, a.student_id, a.status
        FROM attendance_records a
        JOIN sessions s ON s.id = a.session_id
        WHERE s.course_id = $1`
	var rows []models.CourseAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course attendance: %w", err)
	}
	return rows, nil
}

// MarkedSessionIDs returns, out of the given sessions, those holding a record
// for the student.
func (r *AttendanceRepository) MarkedSessionIDs(ctx context.Context, sessionIDs []string, studentID string) (map[string]bool, error) {
	marked := make(map[string]bool, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return marked, nil
	}
	query, args, err := sqlx.In(`SELECT session_id FROM attendance_records WHERE session_id IN (?) AND student_id = ?`, sessionIDs, studentID)
	if err != nil {
		return nil, fmt.Errorf("build marked session query: %w", err)
	}
	query = r.db.Rebind(query)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list marked sessions: %w", err)
	}
	for _, id := range ids {
		marked[id] = true
	}
	return marked, nil
}

// Upsert writes a record, overwriting any existing record for the same
// (session, student) pair in place.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	const query = `INSERT INTO attendance_records (session_id, student_id, student_name, student_username, status, marked_at, marked_by, marked_by_name, method)
        VALUES (:session_id, :student_id, :student_name, :student_username, :status, :marked_at, :marked_by, :marked_by_name, :method)
        ON CONFLICT (session_id, student_id) DO UPDATE
        SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at, marked_by = EXCLUDED.marked_by,
            marked_by_name = EXCLUDED.marked_by_name, method = EXCLUDED.method`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// InsertIfAbsent appends a record only when none exists for the pair. Returns
// true when the insert happened.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	const query = `INSERT INTO attendance_records (session_id, student_id, student_name, student_username, status, marked_at, marked_by, marked_by_name, method)
        VALUES (:session_id, :student_id, :student_name, :student_username, :status, :marked_at, :marked_by, :marked_by_name, :method)
        ON CONFLICT (session_id, student_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatusFields performs the targeted update of exactly the matched
// record's status, marked_at and marked_by fields. Returns the number of rows
// touched.
func (r *AttendanceRepository) UpdateStatusFields(ctx context.Context, record *models.AttendanceRecord) (int64, error) {
	const query = `UPDATE attendance_records
        SET status = :status, marked_at = :marked_at, marked_by = :marked_by, marked_by_name = :marked_by_name
        WHERE session_id = :session_id AND student_id = :student_id`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return 0, fmt.Errorf("update attendance status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update attendance status: %w", err)
	}
	return affected, nil
}

// ReplaceForSession swaps the session's entire attendance set for the given
// records in one transaction. Callers supply the full roster each time.
func (r *AttendanceRepository) ReplaceForSession(ctx context.Context, sessionID string, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session attendance: %w", err)
	}
	const insert = `INSERT INTO attendance_records (session_id, student_id, student_name, student_username, status, marked_at, marked_by, marked_by_name, method)
        VALUES (:session_id, :student_id, :student_name, :student_username, :status, :marked_at, :marked_by, :marked_by_name, :method)`
	for i := range records {
		if _, err := tx.NamedExecContext(ctx, insert, &records[i]); err != nil {
			return fmt.Errorf("insert attendance record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance replace: %w", err)
	}
	return nil
}
