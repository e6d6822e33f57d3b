package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kwabena-dev/courseattend-api/internal/models"
	appErrors "github.com/kwabena-dev/courseattend-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ExistsNumber(ctx context.Context, courseID string, number int) (bool, error)
	Create(ctx context.Context, session *models.Session) error
	ListByInstructor(ctx context.Context, instructorID string) ([]models.SessionListItem, error)
	ListByCourseIDs(ctx context.Context, courseIDs []string) ([]models.SessionListItem, error)
	ListForDate(ctx context.Context, courseIDs []string, date string, statuses []models.SessionStatus) ([]models.Session, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateDetails(ctx context.Context, id string, update models.SessionUpdate) error
	UpdateCode(ctx context.Context, id, code string) error
	Delete(ctx context.Context, id string) error
}

type sessionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	EnrolledStudents(ctx context.Context, courseID string) ([]models.CourseStudent, error)
}

type sessionEnrollmentReader interface {
	ApprovedCourseIDs(ctx context.Context, studentID string) ([]string, error)
	ListApprovedByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error)
}

type sessionAttendanceReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	MarkedSessionIDs(ctx context.Context, sessionIDs []string, studentID string) (map[string]bool, error)
}

// CreateSessionRequest describes session creation payload. Date is YYYY-MM-DD
// and the time window is HH:MM.
type CreateSessionRequest struct {
	CourseID      string `json:"course_id" validate:"required"`
	SessionNumber int    `json:"session_number" validate:"required,min=1"`
	Date          string `json:"date" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	Location      string `json:"location" validate:"max=120"`
	Description   string `json:"description" validate:"max=1000"`
}

// Alphabet for attendance codes, skipping visually ambiguous characters.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SessionService manages the session registry and attendance-code lifecycle.
type SessionService struct {
	sessions    sessionRepository
	courses     sessionCourseReader
	enrollments sessionEnrollmentReader
	attendance  sessionAttendanceReader
	validator   *validator.Validate
	logger      *zap.Logger
	codeLength  int
	now         func() time.Time
}

// NewSessionService constructs SessionService.
func NewSessionService(sessions sessionRepository, courses sessionCourseReader, enrollments sessionEnrollmentReader, attendance sessionAttendanceReader, validate *validator.Validate, logger *zap.Logger, codeLength int) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeLength <= 0 {
		codeLength = 6
	}
	return &SessionService{
		sessions:    sessions,
		courses:     courses,
		enrollments: enrollments,
		attendance:  attendance,
		validator:   validate,
		logger:      logger,
		codeLength:  codeLength,
		now:         time.Now,
	}
}

// Create schedules a new session for a course owned by the caller. A fresh
// attendance code is generated server-side.
func (s *SessionService) Create(ctx context.Context, caller models.Caller, req CreateSessionRequest) (*models.Session, error) {
	if !caller.Role.CanInstruct() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors may create sessions")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if err := validateSessionWindow(req.Date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if course.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	taken, err := s.sessions.ExistsNumber(ctx, course.ID, req.SessionNumber)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check session number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("session %d already exists for this course", req.SessionNumber))
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate attendance code")
	}

	session := &models.Session{
		CourseID:       course.ID,
		CourseCode:     course.CourseCode,
		CourseName:     course.CourseName,
		InstructorID:   caller.ID,
		InstructorName: caller.FullName,
		SessionNumber:  req.SessionNumber,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Location:       req.Location,
		Description:    req.Description,
		AttendanceCode: code,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to create session")
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("course_id", course.ID),
		zap.Int("session_number", req.SessionNumber))
	return session, nil
}

// List returns sessions scoped to the caller: instructors see sessions of
// their own courses, students see sessions of courses they are enrolled in.
// Attendance codes are stripped for students.
func (s *SessionService) List(ctx context.Context, caller models.Caller) ([]models.SessionListItem, error) {
	if caller.Role.CanInstruct() {
		sessions, err := s.sessions.ListByInstructor(ctx, caller.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list sessions")
		}
		return sessions, nil
	}

	courseIDs, err := s.enrollments.ApprovedCourseIDs(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	sessions, err := s.sessions.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}
	for i := range sessions {
		sessions[i].AttendanceCode = ""
	}
	return sessions, nil
}

// Get returns the session with its course roster and attendance list,
// readable by any authenticated caller. Only the owning instructor sees the
// attendance code.
func (s *SessionService) Get(ctx context.Context, caller models.Caller, id string) (*models.SessionDetail, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.InstructorID != caller.ID {
		session.AttendanceCode = ""
	}

	roster, err := s.enrollments.ListApprovedByCourse(ctx, session.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	records, err := s.attendance.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}

	detail := &models.SessionDetail{
		Session:          *session,
		EnrolledStudents: make([]models.RosterEntry, 0, len(roster)),
		Attendance:       records,
	}
	for _, entry := range roster {
		detail.EnrolledStudents = append(detail.EnrolledStudents, models.RosterEntry{
			StudentID:       entry.StudentID,
			StudentName:     entry.StudentName,
			StudentUsername: entry.StudentUsername,
		})
	}
	return detail, nil
}

// UpdateStatus moves the session through its lifecycle.
func (s *SessionService) UpdateStatus(ctx context.Context, caller models.Caller, id string, status models.SessionStatus) (*models.Session, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session status")
	}
	session, err := s.findOwnedSession(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateStatus(ctx, session.ID, status); err != nil {
		return nil, appErrors.Internal(err, "failed to update session status")
	}
	session.Status = status
	s.logger.Info("session status updated", zap.String("session_id", id), zap.String("status", string(status)))
	return session, nil
}

// UpdateDetails applies a partial update to the session's schedule fields.
func (s *SessionService) UpdateDetails(ctx context.Context, caller models.Caller, id string, update models.SessionUpdate) (*models.Session, error) {
	session, err := s.findOwnedSession(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return session, nil
	}

	date := session.Date
	if update.Date != nil {
		date = *update.Date
	}
	start := session.StartTime
	if update.StartTime != nil {
		start = *update.StartTime
	}
	end := session.EndTime
	if update.EndTime != nil {
		end = *update.EndTime
	}
	if err := validateSessionWindow(date, start, end); err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateDetails(ctx, id, update); err != nil {
		return nil, appErrors.Internal(err, "failed to update session")
	}
	return s.findSession(ctx, id)
}

// RegenerateCode replaces the session's attendance code, invalidating the
// previous one immediately.
func (s *SessionService) RegenerateCode(ctx context.Context, caller models.Caller, id string) (*models.Session, error) {
	session, err := s.findOwnedSession(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	code, err := s.generateCode()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate attendance code")
	}
	if err := s.sessions.UpdateCode(ctx, session.ID, code); err != nil {
		return nil, appErrors.Internal(err, "failed to store attendance code")
	}
	session.AttendanceCode = code
	s.logger.Info("attendance code regenerated", zap.String("session_id", id))
	return session, nil
}

// Delete removes the session together with its attendance records.
func (s *SessionService) Delete(ctx context.Context, caller models.Caller, id string) error {
	session, err := s.findOwnedSession(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return appErrors.Internal(err, "failed to delete session")
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// AvailableToday returns today's sessions the student can check in to,
// annotated with whether attendance is already marked.
func (s *SessionService) AvailableToday(ctx context.Context, caller models.Caller) ([]models.AvailableSession, error) {
	if !caller.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have check-in sessions")
	}

	courseIDs, err := s.enrollments.ApprovedCourseIDs(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	today := s.now().UTC().Format("2006-01-02")
	sessions, err := s.sessions.ListForDate(ctx, courseIDs, today, []models.SessionStatus{models.SessionStatusScheduled, models.SessionStatusInProgress})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}

	sessionIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}
	marked, err := s.attendance.MarkedSessionIDs(ctx, sessionIDs, caller.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance marks")
	}

	available := make([]models.AvailableSession, 0, len(sessions))
	for _, session := range sessions {
		available = append(available, models.AvailableSession{
			ID:            session.ID,
			CourseCode:    session.CourseCode,
			CourseName:    session.CourseName,
			SessionNumber: session.SessionNumber,
			StartTime:     session.StartTime,
			EndTime:       session.EndTime,
			Location:      session.Location,
			Status:        session.Status,
			AlreadyMarked: marked[session.ID],
		})
	}
	return available, nil
}

func (s *SessionService) findSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) findOwnedSession(ctx context.Context, caller models.Caller, id string) (*models.Session, error) {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.InstructorID != caller.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another instructor")
	}
	return session, nil
}

func (s *SessionService) generateCode() (string, error) {
	code := make([]byte, s.codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func validateSessionWindow(date, start, end string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	startAt, err := time.Parse("15:04", start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	endAt, err := time.Parse("15:04", end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if !endAt.After(startAt) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return nil
}
