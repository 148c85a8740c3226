package models

// LocalUser is one entry of the local user directory. Only active (not
// deleted, not suspended) users take part in login derivation and score
// mapping.
type LocalUser struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
