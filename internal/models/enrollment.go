package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
//
// The state machine per (student, course) pair is:
//
//	NONE → pending → {approved | rejected}
//	rejected → pending (resubmit)
//
// approved is terminal. At most one request row exists per pair; resubmission
// after rejection reopens the same row.
type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// EnrollmentRequest captures a student's application to join a course.
// Student, course and instructor display fields are snapshots taken when the
// request is created.
type EnrollmentRequest struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	StudentName     string           `db:"student_name" json:"student_name"`
	StudentUsername string           `db:"student_username" json:"student_username"`
	CourseID        string           `db:"course_id" json:"course_id"`
	CourseName      string           `db:"course_name" json:"course_name"`
	CourseCode      string           `db:"course_code" json:"course_code"`
	InstructorID    string           `db:"instructor_id" json:"instructor_id"`
	InstructorName  string           `db:"instructor_name" json:"instructor_name"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	RequestedAt     time.Time        `db:"requested_at" json:"requested_at"`
	ReviewedAt      *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy      *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
}

// ReviewAction is the instructor's decision on a pending request.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// Valid returns true when the action is a supported value.
func (a ReviewAction) Valid() bool {
	return a == ReviewActionApprove || a == ReviewActionReject
}
