package models

import "time"

// Activity actions recorded in the audit trail.
const (
	ActivityActionLogin         = "LOGIN"
	ActivityActionLoginFailed   = "LOGIN_FAILED"
	ActivityActionLogout        = "LOGOUT"
	ActivityActionRegister      = "REGISTER"
	ActivityActionUpload        = "UPLOAD"
	ActivityActionSubjectCreate = "SUBJECT_CREATE"
)

// ActivityLog is one append-only audit trail entry. Entries are never
// mutated or pruned.
type ActivityLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Username  string    `db:"username" json:"username"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	IPAddress string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent string    `db:"user_agent" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// ActivityFilter captures filtering criteria for listing activity entries.
type ActivityFilter struct {
	Username string
	Action   string
	Page     int
	PageSize int
}
