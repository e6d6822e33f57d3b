package models

import "time"

// UserRole is the closed set of application roles. Roles are immutable after
// registration.
type UserRole string

const (
	RoleStudent  UserRole = "student"
	RoleLecturer UserRole = "lecturer"
	RoleIntern   UserRole = "intern"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleIntern:
		return true
	default:
		return false
	}
}

// CanInstruct reports whether the role may own courses and sessions and mark
// attendance. Interns carry the same teaching capabilities as lecturers.
func (r UserRole) CanInstruct() bool {
	return r == RoleLecturer || r == RoleIntern
}

// UserStatus tracks account state.
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"fullname" json:"fullname"`
	Role         UserRole   `db:"role" json:"role"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Status       UserStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Caller is the resolved identity of the authenticated user performing an
// operation. It is built once per request from the session context and passed
// explicitly into every service call; workflow logic never reads identity
// from ambient state.
type Caller struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"fullname"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}

// IsStudent reports whether the caller holds the student role.
func (c Caller) IsStudent() bool {
	return c.Role == RoleStudent
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
