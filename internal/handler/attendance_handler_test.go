package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/kwabena-dev/courseattend-api/internal/middleware"
	"github.com/kwabena-dev/courseattend-api/internal/models"
	"github.com/kwabena-dev/courseattend-api/internal/service"
)

type attendanceRepoFake struct {
	records map[string]*models.AttendanceRecord
}

func attendanceKey(sessionID, studentID string) string {
	return sessionID + "|" + studentID
}

func (f *attendanceRepoFake) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	if rec, ok := f.records[attendanceKey(sessionID, studentID)]; ok {
		return rec, nil
	}
	return nil, sql.ErrNoRows
}

func (f *attendanceRepoFake) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, rec := range f.records {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *attendanceRepoFake) ListByStudent(ctx context.Context, studentID string) ([]models.StudentAttendanceEntry, error) {
	return nil, nil
}

func (f *attendanceRepoFake) ListByCourse(ctx context.Context, courseID string) ([]models.CourseAttendanceRow, error) {
	var out []models.CourseAttendanceRow
	for _, rec := range f.records {
		out = append(out, models.CourseAttendanceRow{SessionID: rec.SessionID, StudentID: rec.StudentID, Status: rec.Status})
	}
	return out, nil
}

func (f *attendanceRepoFake) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	f.records[attendanceKey(record.SessionID, record.StudentID)] = record
	return nil
}

func (f *attendanceRepoFake) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	key := attendanceKey(record.SessionID, record.StudentID)
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = record
	return true, nil
}

func (f *attendanceRepoFake) UpdateStatusFields(ctx context.Context, record *models.AttendanceRecord) (int64, error) {
	key := attendanceKey(record.SessionID, record.StudentID)
	existing, ok := f.records[key]
	if !ok {
		return 0, nil
	}
	existing.Status = record.Status
	return 1, nil
}

func (f *attendanceRepoFake) ReplaceForSession(ctx context.Context, sessionID string, records []models.AttendanceRecord) error {
	for key, rec := range f.records {
		if rec.SessionID == sessionID {
			delete(f.records, key)
		}
	}
	for i := range records {
		f.records[attendanceKey(sessionID, records[i].StudentID)] = &records[i]
	}
	return nil
}

type sessionReaderFake struct {
	session *models.Session
}

func (f *sessionReaderFake) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if f.session != nil && f.session.ID == id {
		return f.session, nil
	}
	return nil, sql.ErrNoRows
}

func (f *sessionReaderFake) FindByCode(ctx context.Context, code string) (*models.Session, error) {
	if f.session != nil && f.session.AttendanceCode == code {
		return f.session, nil
	}
	return nil, sql.ErrNoRows
}

func (f *sessionReaderFake) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return 1, nil
}

type courseReaderFake struct {
	course *models.Course
}

func (f *courseReaderFake) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if f.course != nil && f.course.ID == id {
		return f.course, nil
	}
	return nil, sql.ErrNoRows
}

type enrollmentReaderFake struct {
	roster []models.EnrollmentRequest
}

func (f *enrollmentReaderFake) ListApprovedByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error) {
	return f.roster, nil
}

func (f *enrollmentReaderFake) IsApproved(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, entry := range f.roster {
		if entry.StudentID == studentID && entry.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

type userReaderFake struct {
	users map[string]*models.User
}

func (f *userReaderFake) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func buildAttendanceRouter(repo *attendanceRepoFake) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := &sessionReaderFake{session: &models.Session{
		ID:             "sess-1",
		CourseID:       "course-1",
		CourseCode:     "CS201",
		CourseName:     "Algorithms",
		InstructorID:   "test-user",
		SessionNumber:  1,
		Date:           time.Now().UTC().Format("2006-01-02"),
		StartTime:      "09:00",
		EndTime:        "11:00",
		Status:         models.SessionStatusInProgress,
		AttendanceCode: "X7K2P9",
	}}
	courses := &courseReaderFake{course: &models.Course{
		ID:           "course-1",
		CourseName:   "Algorithms",
		CourseCode:   "CS201",
		InstructorID: "test-user",
		Status:       models.CourseStatusActive,
	}}
	enrollments := &enrollmentReaderFake{roster: []models.EnrollmentRequest{
		{StudentID: "test-user", StudentName: "Test User", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
	}}

	users := &userReaderFake{users: map[string]*models.User{
		"test-user": {ID: "test-user", Username: "testuser", FullName: "Test User"},
	}}

	attendanceService := service.NewAttendanceService(repo, sessions, courses, enrollments, users, nil, nil, nil, 15*time.Minute, 5*time.Minute)
	attendanceHandler := NewAttendanceHandler(attendanceService)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID:   "test-user",
				Username: "testuser",
				FullName: "Test User",
				Role:     models.UserRole(role),
			})
		}
		c.Next()
	})

	router.POST("/attendance/checkin", internalmiddleware.RequireStudent(), attendanceHandler.SelfMark)
	router.GET("/attendance/mine", internalmiddleware.RequireStudent(), attendanceHandler.MyHistory)
	router.POST("/sessions/:id/attendance", internalmiddleware.RequireInstructor(), attendanceHandler.BulkMark)
	router.GET("/sessions/:id/attendance", attendanceHandler.SessionAttendance)
	router.GET("/courses/:id/attendance/summary", attendanceHandler.CourseSummary)
	router.GET("/courses/:id/attendance/export", internalmiddleware.RequireInstructor(), attendanceHandler.ExportCourseSummary)
	return router
}

func TestAttendanceCheckinRoute(t *testing.T) {
	repo := &attendanceRepoFake{records: map[string]*models.AttendanceRecord{}}
	router := buildAttendanceRouter(repo)

	checkin := func() *bytes.Buffer {
		return bytes.NewBufferString(`{"attendance_code":"X7K2P9"}`)
	}

	t.Run("first checkin records attendance", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/attendance/checkin", checkin())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"already_marked":false`)
		require.Contains(t, resp.Body.String(), `"course_code":"CS201"`)
	})

	t.Run("repeat checkin is idempotent", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/attendance/checkin", checkin())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"already_marked":true`)
	})

	t.Run("unknown code not found", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/attendance/checkin", bytes.NewBufferString(`{"attendance_code":"WRONG1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/attendance/checkin", bytes.NewBufferString(`invalid`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("instructor cannot check in", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/attendance/checkin", checkin())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestAttendanceInstructorRoutes(t *testing.T) {
	repo := &attendanceRepoFake{records: map[string]*models.AttendanceRecord{}}
	router := buildAttendanceRouter(repo)

	t.Run("bulk mark replaces set", func(t *testing.T) {
		body := `{"attendance":[{"student_id":"test-user","status":"present"}]}`
		req, _ := http.NewRequest(http.MethodPost, "/sessions/sess-1/attendance", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Len(t, repo.records, 1)
	})

	t.Run("bulk mark empty list rejected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/sessions/sess-1/attendance", bytes.NewBufferString(`{"attendance":[]}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("session attendance listing", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/sessions/sess-1/attendance", nil)
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"student_id":"test-user"`)
	})

	t.Run("enrolled student sees session attendance", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/sessions/sess-1/attendance", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"course_code":"CS201"`)
	})

	t.Run("course summary", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/attendance/summary", nil)
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"attendance_rate":100`)
	})

	t.Run("course summary readable by students", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/attendance/summary", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("csv export sets attachment headers", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/attendance/export?format=csv", nil)
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, `attachment; filename="attendance-CS201.csv"`, resp.Header().Get("Content-Disposition"))
		require.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
		require.Contains(t, resp.Body.String(), "Test User")
	})

	t.Run("unsupported export format", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/attendance/export?format=xlsx", nil)
		req.Header.Set("X-Test-Role", string(models.RoleLecturer))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
