package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
	"github.com/kwabena-dev/courseattend-api/pkg/export"
)

type attendanceRepository interface {
	FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentAttendanceEntry, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	UpdateStatusFields(ctx context.Context, record *models.AttendanceRecord) (int64, error)
	ReplaceForSession(ctx context.Context, sessionID string, records []models.AttendanceRecord) error
}

type attendanceSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByCode(ctx context.Context, code string) (*models.Session, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type attendanceCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type attendanceUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type attendanceEnrollmentReader interface {
	ListApprovedByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error)
	IsApproved(ctx context.Context, studentID, courseID string) (bool, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type attendanceMetrics interface {
	RecordCheckin(status string)
	RecordCacheLookup(hit bool)
}

// BulkAttendanceEntry is one row of a bulk marking request. Entries missing
// student_id or status are skipped rather than rejected. Name fields are a
// fallback used only when no stored user record exists for the student.
type BulkAttendanceEntry struct {
	StudentID       string `json:"student_id"`
	Status          string `json:"status"`
	StudentName     string `json:"student_name"`
	StudentUsername string `json:"student_username"`
}

// BulkAttendanceRequest replaces a session's complete attendance set.
type BulkAttendanceRequest struct {
	Attendance []BulkAttendanceEntry `json:"attendance" validate:"required,min=1"`
}

// MarkAttendanceRequest marks or re-marks a single student. Name fields are a
// fallback used only when no stored user record exists for the student.
type MarkAttendanceRequest struct {
	StudentID       string `json:"student_id" validate:"required"`
	Status          string `json:"status" validate:"required"`
	StudentName     string `json:"student_name"`
	StudentUsername string `json:"student_username"`
}

// SelfMarkRequest is the student check-in payload.
type SelfMarkRequest struct {
	AttendanceCode string `json:"attendance_code" validate:"required"`
}

// SelfMarkResult reports the outcome of a student check-in.
type SelfMarkResult struct {
	Record        models.AttendanceRecord `json:"record"`
	AlreadyMarked bool                    `json:"already_marked"`
	Session       SessionRef              `json:"session"`
}

// SessionRef identifies the session a check-in landed on.
type SessionRef struct {
	ID            string `json:"id"`
	CourseCode    string `json:"course_code"`
	CourseName    string `json:"course_name"`
	SessionNumber int    `json:"session_number"`
}

// ExportResult is a rendered summary document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// AttendanceService implements attendance marking, student self check-in and
// course summaries. Records live under (session, student) keys with atomic
// upserts, so concurrent marking of different students never interferes.
type AttendanceService struct {
	records     attendanceRepository
	sessions    attendanceSessionReader
	courses     attendanceCourseReader
	enrollments attendanceEnrollmentReader
	users       attendanceUserReader
	cache       summaryCache
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     attendanceMetrics

	lateThreshold time.Duration
	summaryTTL    time.Duration
	now           func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(records attendanceRepository, sessions attendanceSessionReader, courses attendanceCourseReader, enrollments attendanceEnrollmentReader, users attendanceUserReader, cache summaryCache, validate *validator.Validate, logger *zap.Logger, lateThreshold, summaryTTL time.Duration) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lateThreshold <= 0 {
		lateThreshold = 15 * time.Minute
	}
	return &AttendanceService{
		records:       records,
		sessions:      sessions,
		courses:       courses,
		enrollments:   enrollments,
		users:         users,
		cache:         cache,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		validator:     validate,
		logger:        logger,
		lateThreshold: lateThreshold,
		summaryTTL:    summaryTTL,
		now:           time.Now,
	}
}

// WithMetrics attaches an optional metrics recorder.
func (s *AttendanceService) WithMetrics(metrics attendanceMetrics) *AttendanceService {
	s.metrics = metrics
	return s
}

// BulkMark replaces the session's entire attendance set with the submitted
// list. Display names come from the stored user record when one exists and
// from the submitted entry otherwise.
func (s *AttendanceService) BulkMark(ctx context.Context, caller models.Caller, sessionID string, req BulkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	session, err := s.ownedSession(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}

	markedAt := s.now().UTC()
	seen := make(map[string]bool, len(req.Attendance))
	records := make([]models.AttendanceRecord, 0, len(req.Attendance))
	for _, entry := range req.Attendance {
		if entry.StudentID == "" || entry.Status == "" {
			continue
		}
		status := models.AttendanceStatus(strings.ToLower(entry.Status))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", entry.Status))
		}
		if seen[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate entry for student %s", entry.StudentID))
		}
		seen[entry.StudentID] = true
		name, username, err := s.resolveStudentIdentity(ctx, entry.StudentID, entry.StudentName, entry.StudentUsername)
		if err != nil {
			return nil, err
		}
		records = append(records, models.AttendanceRecord{
			SessionID:       session.ID,
			StudentID:       entry.StudentID,
			StudentName:     name,
			StudentUsername: username,
			Status:          status,
			MarkedAt:        markedAt,
			MarkedBy:        caller.ID,
			MarkedByName:    caller.FullName,
			Method:          models.AttendanceMethodManual,
		})
	}

	if err := s.records.ReplaceForSession(ctx, session.ID, records); err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance")
	}
	s.invalidateSummary(ctx, session.CourseID)
	s.logger.Info("attendance marked",
		zap.String("session_id", session.ID),
		zap.Int("records", len(records)))
	return records, nil
}

// MarkOne marks or re-marks a single student. An existing record for the
// pair is overwritten in place.
func (s *AttendanceService) MarkOne(ctx context.Context, caller models.Caller, sessionID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.AttendanceStatus(strings.ToLower(req.Status))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", req.Status))
	}
	session, err := s.ownedSession(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	name, username, err := s.resolveStudentIdentity(ctx, req.StudentID, req.StudentName, req.StudentUsername)
	if err != nil {
		return nil, err
	}

	record := &models.AttendanceRecord{
		SessionID:       session.ID,
		StudentID:       req.StudentID,
		StudentName:     name,
		StudentUsername: username,
		Status:          status,
		MarkedAt:        s.now().UTC(),
		MarkedBy:        caller.ID,
		MarkedByName:    caller.FullName,
		Method:          models.AttendanceMethodManual,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance record")
	}
	s.invalidateSummary(ctx, session.CourseID)
	return record, nil
}

// UpdateOne changes the status of an existing record. A missing record is an
// error rather than an implicit create.
func (s *AttendanceService) UpdateOne(ctx context.Context, caller models.Caller, sessionID, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", status))
	}
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another instructor")
	}

	record := &models.AttendanceRecord{
		SessionID:    session.ID,
		StudentID:    studentID,
		Status:       status,
		MarkedAt:     s.now().UTC(),
		MarkedBy:     caller.ID,
		MarkedByName: caller.FullName,
	}
	affected, err := s.records.UpdateStatusFields(ctx, record)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update attendance record")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	s.invalidateSummary(ctx, session.CourseID)
	updated, err := s.records.FindBySessionAndStudent(ctx, session.ID, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance record")
	}
	return updated, nil
}

// SelfMark checks the caller in with a session's attendance code. Check-in is
// only open while the session is in progress; arrivals past the late cutoff
// are recorded as late. Re-submitting after a successful check-in returns the
// existing record unchanged.
func (s *AttendanceService) SelfMark(ctx context.Context, caller models.Caller, req SelfMarkRequest) (*SelfMarkResult, error) {
	if !caller.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may check in")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.AttendanceCode))
	session, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid attendance code")
		}
		return nil, appErrors.Internal(err, "failed to look up attendance code")
	}
	now := s.now().UTC()
	if session.Date != now.Format("2006-01-02") || session.Status != models.SessionStatusInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "session is not open for check-in")
	}

	enrolled, err := s.enrollments.IsApproved(ctx, caller.ID, session.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
	}

	status := models.AttendanceStatusPresent
	cutoff, err := sessionLateCutoff(session, s.lateThreshold)
	if err != nil {
		s.logger.Warn("session start time unparseable, skipping late cutoff",
			zap.String("session_id", session.ID),
			zap.String("start_time", session.StartTime),
			zap.Error(err))
	} else if now.After(cutoff) {
		status = models.AttendanceStatusLate
	}

	record := &models.AttendanceRecord{
		SessionID:       session.ID,
		StudentID:       caller.ID,
		StudentName:     caller.FullName,
		StudentUsername: caller.Username,
		Status:          status,
		MarkedAt:        now,
		MarkedBy:        caller.ID,
		MarkedByName:    "Self",
		Method:          models.AttendanceMethodCode,
	}
	inserted, err := s.records.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance record")
	}
	if !inserted {
		existing, err := s.records.FindBySessionAndStudent(ctx, session.ID, caller.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load attendance record")
		}
		record = existing
	} else {
		s.invalidateSummary(ctx, session.CourseID)
		if s.metrics != nil {
			s.metrics.RecordCheckin(string(status))
		}
		s.logger.Info("student checked in",
			zap.String("session_id", session.ID),
			zap.String("status", string(status)))
	}

	return &SelfMarkResult{
		Record:        *record,
		AlreadyMarked: !inserted,
		Session: SessionRef{
			ID:            session.ID,
			CourseCode:    session.CourseCode,
			CourseName:    session.CourseName,
			SessionNumber: session.SessionNumber,
		},
	}, nil
}

// SessionAttendance returns the session's full attendance list. Faculty may
// view any session; students only sessions of courses they are approved-
// enrolled in.
func (s *AttendanceService) SessionAttendance(ctx context.Context, caller models.Caller, sessionID string) (*models.SessionAttendanceView, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if caller.IsStudent() {
		enrolled, err := s.enrollments.IsApproved(ctx, caller.ID, session.CourseID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
	}
	records, err := s.records.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	return &models.SessionAttendanceView{
		SessionID:     session.ID,
		CourseCode:    session.CourseCode,
		CourseName:    session.CourseName,
		SessionNumber: session.SessionNumber,
		Date:          session.Date,
		Attendance:    records,
	}, nil
}

// StudentHistory returns a student's attendance across all courses, most
// recent session first. An empty studentID resolves to the caller; students
// may only query themselves.
func (s *AttendanceService) StudentHistory(ctx context.Context, caller models.Caller, studentID string) ([]models.StudentAttendanceEntry, error) {
	if studentID == "" {
		studentID = caller.ID
	}
	if caller.IsStudent() && studentID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own history")
	}
	entries, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance history")
	}
	return entries, nil
}

// CourseSummary aggregates per-student attendance across a course, open to
// any authenticated caller. A student's rate counts only sessions where a
// record exists for them. Summaries are cached briefly and invalidated on
// any attendance write.
func (s *AttendanceService) CourseSummary(ctx context.Context, caller models.Caller, courseID string) (*models.CourseAttendanceSummary, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}

	key := summaryCacheKey(courseID)
	if s.cache != nil {
		var cached models.CourseAttendanceSummary
		err := s.cache.Get(ctx, key, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(err == nil)
		}
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		}
	}

	summary, err := s.buildSummary(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// ExportCourseSummary renders the course summary as a CSV or PDF document.
// Unlike the summary read, exporting stays with the owning instructor.
func (s *AttendanceService) ExportCourseSummary(ctx context.Context, caller models.Caller, courseID, format string) (*ExportResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if course.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	summary, err := s.CourseSummary(ctx, caller, courseID)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("%s %s Attendance Summary", course.CourseCode, course.CourseName),
		Columns: []string{"Student", "Username", "Sessions", "Present", "Absent", "Late", "Excused", "Rate (%)"},
	}
	for _, student := range summary.Students {
		table.Rows = append(table.Rows, []string{
			student.StudentName,
			student.StudentUsername,
			strconv.Itoa(student.TotalSessions),
			strconv.Itoa(student.Present),
			strconv.Itoa(student.Absent),
			strconv.Itoa(student.Late),
			strconv.Itoa(student.Excused),
			fmt.Sprintf("%.1f", student.AttendanceRate),
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("attendance-%s.csv", course.CourseCode),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("attendance-%s.pdf", course.CourseCode),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *AttendanceService) buildSummary(ctx context.Context, courseID string) (*models.CourseAttendanceSummary, error) {
	totalSessions, err := s.sessions.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count sessions")
	}
	roster, err := s.enrollments.ListApprovedByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	rows, err := s.records.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}

	perStudent := make(map[string]*models.StudentAttendanceSummary, len(roster))
	for _, entry := range roster {
		perStudent[entry.StudentID] = &models.StudentAttendanceSummary{
			StudentID:       entry.StudentID,
			StudentName:     entry.StudentName,
			StudentUsername: entry.StudentUsername,
		}
	}
	for _, row := range rows {
		student, ok := perStudent[row.StudentID]
		if !ok {
			continue
		}
		student.TotalSessions++
		switch row.Status {
		case models.AttendanceStatusPresent:
			student.Present++
		case models.AttendanceStatusAbsent:
			student.Absent++
		case models.AttendanceStatusLate:
			student.Late++
		case models.AttendanceStatusExcused:
			student.Excused++
		}
	}

	summary := &models.CourseAttendanceSummary{
		CourseID:      courseID,
		TotalSessions: totalSessions,
		Students:      make([]models.StudentAttendanceSummary, 0, len(perStudent)),
	}
	for _, student := range perStudent {
		if student.TotalSessions > 0 {
			rate := float64(student.Present+student.Late) / float64(student.TotalSessions) * 100
			student.AttendanceRate = math.Round(rate*10) / 10
		}
		summary.Students = append(summary.Students, *student)
	}
	sort.Slice(summary.Students, func(i, j int) bool {
		return summary.Students[i].StudentName < summary.Students[j].StudentName
	})
	return summary, nil
}

func (s *AttendanceService) ownedSession(ctx context.Context, caller models.Caller, sessionID string) (*models.Session, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another instructor")
	}
	return session, nil
}

// resolveStudentIdentity prefers the stored user record for display fields
// and falls back to the caller-supplied values when no record exists.
func (s *AttendanceService) resolveStudentIdentity(ctx context.Context, studentID, fallbackName, fallbackUsername string) (string, string, error) {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallbackName, fallbackUsername, nil
		}
		return "", "", appErrors.Internal(err, "failed to load student")
	}
	return user.FullName, user.Username, nil
}

func (s *AttendanceService) findSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) invalidateSummary(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, summaryCacheKey(courseID)); err != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.Error(err))
	}
}

func sessionLateCutoff(session *models.Session, threshold time.Duration) (time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", session.Date+" "+session.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(threshold), nil
}
