package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceMethod records how an attendance record was produced.
type AttendanceMethod string

const (
	AttendanceMethodManual AttendanceMethod = "manual"
	AttendanceMethodCode   AttendanceMethod = "code"
)

// AttendanceRecord is one student's attendance within a session. The table is
// keyed by (session_id, student_id); re-marking upserts in place so at most
// one record exists per pair.
type AttendanceRecord struct {
	SessionID       string           `db:"session_id" json:"-"`
	StudentID       string           `db:"student_id" json:"student_id"`
	StudentName     string           `db:"student_name" json:"student_name"`
	StudentUsername string           `db:"student_username" json:"student_username"`
	Status          AttendanceStatus `db:"status" json:"status"`
	MarkedAt        time.Time        `db:"marked_at" json:"marked_at"`
	MarkedBy        string           `db:"marked_by" json:"marked_by"`
	MarkedByName    string           `db:"marked_by_name" json:"marked_by_name"`
	Method          AttendanceMethod `db:"method" json:"method"`
}

// StudentAttendanceEntry flattens a student's record with its session
// identity for history listings.
type StudentAttendanceEntry struct {
	SessionID     string           `db:"session_id" json:"session_id"`
	CourseCode    string           `db:"course_code" json:"course_code"`
	CourseName    string           `db:"course_name" json:"course_name"`
	SessionNumber int              `db:"session_number" json:"session_number"`
	Date          string           `db:"date" json:"date"`
	StartTime     string           `db:"start_time" json:"start_time"`
	EndTime       string           `db:"end_time" json:"end_time"`
	Status        AttendanceStatus `db:"status" json:"status"`
	MarkedAt      time.Time        `db:"marked_at" json:"marked_at"`
	MarkedBy      string           `db:"marked_by" json:"marked_by"`
}

// SessionAttendanceView is the per-session attendance listing.
type SessionAttendanceView struct {
	SessionID     string             `json:"session_id"`
	CourseCode    string             `json:"course_code"`
	CourseName    string             `json:"course_name"`
	SessionNumber int                `json:"session_number"`
	Date          string             `json:"date"`
	Attendance    []AttendanceRecord `json:"attendance"`
}

// StudentAttendanceSummary aggregates one student's attendance across a
// course. TotalSessions counts only sessions holding a record for the
// student; the rate is (present+late)/TotalSessions rounded to one decimal.
type StudentAttendanceSummary struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name"`
	StudentUsername string  `json:"student_username"`
	TotalSessions   int     `json:"total_sessions"`
	Present         int     `json:"present"`
	Absent          int     `json:"absent"`
	Late            int     `json:"late"`
	Excused         int     `json:"excused"`
	AttendanceRate  float64 `json:"attendance_rate"`
}

// CourseAttendanceSummary is the full per-course aggregation.
type CourseAttendanceSummary struct {
	CourseID      string                     `json:"course_id"`
	TotalSessions int                        `json:"total_sessions"`
	Students      []StudentAttendanceSummary `json:"students"`
}

// CourseAttendanceRow is one (session, student, status) tuple used to build
// course summaries.
type CourseAttendanceRow struct {
	SessionID string           `db:"session_id"`
	StudentID string           `db:"student_id"`
	Status    AttendanceStatus `db:"status"`
}
