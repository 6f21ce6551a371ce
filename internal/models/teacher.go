package models

import "time"

// RoleMarkerTeacher is the role marker stored on teacher account records.
// The admin account never appears in the teachers table, so the marker
// doubles as the roster filter.
const RoleMarkerTeacher = "teacher"

// TeacherAccount represents a grader account managed by the admin. The ID is
// chosen by the admin at creation time and used as the login identifier.
type TeacherAccount struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Active       bool      `db:"active" json:"active"`
}
