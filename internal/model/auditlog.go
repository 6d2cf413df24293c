package model

// Kinds of audit records. One "req" and one "rsp" row are written per
// request/response cycle.
const (
	AuditKindRequest  = "req"
	AuditKindResponse = "rsp"
)

// AuditTimeFormat is the fixed textual timestamp format persisted with
// every audit record.
const AuditTimeFormat = "2006-01-02 15:04:05.000"

// AuditLog is one persisted request or response record. UserID is the
// authenticated subject id as a denormalized string; empty for
// unauthenticated traffic. Rows are append-only.
type AuditLog struct {
	ID         int64  `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	Method     string `json:"method" db:"method"`
	Path       string `json:"path" db:"path"`
	Query      string `json:"query" db:"query"`
	Body       string `json:"body" db:"body"`
	RemoteAddr string `json:"remote_addr" db:"remote_addr"`
	Kind       string `json:"log_type" db:"log_type"`
	Created    string `json:"created" db:"created"`
}
