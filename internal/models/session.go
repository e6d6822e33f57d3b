package models

import "time"

// SessionStatus tracks the lifecycle of a class session. Self check-in is
// only open while the session is in progress.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// Session is one scheduled meeting of a course, the unit against which
// attendance is recorded. Date is a YYYY-MM-DD string and the time window is
// HH:MM strings, so ordering and the late cutoff work on wall-clock values
// independent of server timezone. Course and instructor display fields are
// snapshots.
type Session struct {
	ID             string        `db:"id" json:"id"`
	CourseID       string        `db:"course_id" json:"course_id"`
	CourseCode     string        `db:"course_code" json:"course_code"`
	CourseName     string        `db:"course_name" json:"course_name"`
	InstructorID   string        `db:"instructor_id" json:"instructor_id"`
	InstructorName string        `db:"instructor_name" json:"instructor_name"`
	SessionNumber  int           `db:"session_number" json:"session_number"`
	Date           string        `db:"date" json:"date"`
	StartTime      string        `db:"start_time" json:"start_time"`
	EndTime        string        `db:"end_time" json:"end_time"`
	Location       string        `db:"location" json:"location"`
	Description    string        `db:"description" json:"description"`
	Status         SessionStatus `db:"status" json:"status"`
	AttendanceCode string        `db:"attendance_code" json:"attendance_code,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionListItem is a session row annotated with the number of attendance
// records already marked.
type SessionListItem struct {
	Session
	TotalStudents int `db:"total_students" json:"total_students"`
}

// SessionDetail is a session with its enrolled roster and attendance list.
type SessionDetail struct {
	Session
	EnrolledStudents []RosterEntry      `json:"enrolled_students"`
	Attendance       []AttendanceRecord `json:"attendance"`
}

// RosterEntry identifies one enrolled student of the session's course.
type RosterEntry struct {
	StudentID       string `json:"student_id"`
	StudentName     string `json:"student_name"`
	StudentUsername string `json:"student_username"`
}

// AvailableSession is a session open for student self check-in today,
// annotated with whether the student already marked attendance.
type AvailableSession struct {
	ID            string        `json:"id"`
	CourseCode    string        `json:"course_code"`
	CourseName    string        `json:"course_name"`
	SessionNumber int           `json:"session_number"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	Location      string        `json:"location"`
	Status        SessionStatus `json:"status"`
	AlreadyMarked bool          `json:"already_marked"`
}

// SessionUpdate carries the optional fields of a partial session update; nil
// fields are left untouched.
type SessionUpdate struct {
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

// Empty reports whether no field is set.
func (u SessionUpdate) Empty() bool {
	return u.Date == nil && u.StartTime == nil && u.EndTime == nil && u.Location == nil && u.Description == nil
}
