package models

import "time"

// CourseStatus tracks course lifecycle.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "active"
	CourseStatusArchived CourseStatus = "archived"
)

// Course is owned exclusively by the instructor who created it. Instructor
// name is a display snapshot taken at creation and not refreshed on rename.
type Course struct {
	ID             string       `db:"id" json:"id"`
	CourseName     string       `db:"course_name" json:"course_name"`
	CourseCode     string       `db:"course_code" json:"course_code"`
	Description    string       `db:"description" json:"description"`
	Credits        int          `db:"credits" json:"credits"`
	InstructorID   string       `db:"instructor_id" json:"instructor_id"`
	InstructorName string       `db:"instructor_name" json:"instructor_name"`
	Status         CourseStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`

	EnrolledStudents []CourseStudent `db:"-" json:"enrolled_students"`
}

// CourseStudent is one entry of a course's enrolled-student set, appended by
// the enrollment workflow on approval.
type CourseStudent struct {
	CourseID    string    `db:"course_id" json:"-"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// CourseUpdate carries the optional fields of a partial course update; nil
// fields are left untouched.
type CourseUpdate struct {
	CourseName  *string `json:"course_name"`
	Description *string `json:"description"`
	Credits     *int    `json:"credits"`
	Status      *string `json:"status"`
}

// Empty reports whether no field is set.
func (u CourseUpdate) Empty() bool {
	return u.CourseName == nil && u.Description == nil && u.Credits == nil && u.Status == nil
}
