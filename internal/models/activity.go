package models

import "time"

// Activity is the local record binding one course module to a WIMS class.
// ClassID is the remote class identifier (qcl); it stays nil until the
// class has been created on the WIMS server.
type Activity struct {
	ID                  int64     `db:"id" json:"id"`
	CourseID            int64     `db:"course_id" json:"course_id"`
	Name                string    `db:"name" json:"name"`
	ClassID             *string   `db:"class_id" json:"class_id,omitempty"`
	Institution         string    `db:"institution" json:"institution"`
	SupervisorFirstName string    `db:"supervisor_first_name" json:"supervisor_first_name"`
	SupervisorLastName  string    `db:"supervisor_last_name" json:"supervisor_last_name"`
	SupervisorEmail     string    `db:"supervisor_email" json:"supervisor_email"`
	Lang                string    `db:"lang" json:"lang"`
	Expiration          string    `db:"expiration" json:"expiration,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// HasClass reports whether a remote class has already been assigned.
func (a *Activity) HasClass() bool {
	return a.ClassID != nil && *a.ClassID != ""
}
