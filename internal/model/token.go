package model

import "time"

// UserToken is a long-lived opaque API token owned by a user. The token
// value is a random 128-bit value encoded as hex; it never expires itself,
// only its per-URI grants do. UserID is stored denormalized as a string.
type UserToken struct {
	ID       int64     `json:"id" db:"id"`
	UserID   string    `json:"user_id" db:"user_id"`
	Token    string    `json:"token" db:"token"`
	IsActive bool      `json:"is_active" db:"is_active"`
	Created  time.Time `json:"created" db:"created"`
	Updated  time.Time `json:"updated" db:"updated"`
}

// TokenGrant authorizes the holder of an opaque token to call a single URI
// until Expire, provided both the grant and the owning token are active.
type TokenGrant struct {
	ID          int64     `json:"id" db:"id"`
	UserTokenID int64     `json:"user_token_id" db:"user_token_id"`
	URI         string    `json:"uri" db:"uri"`
	Expire      time.Time `json:"expire" db:"expire"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Created     time.Time `json:"created" db:"created"`
	Updated     time.Time `json:"updated" db:"updated"`
}

// GrantLookup is the projection returned by the grant-resolution query:
// the owning token joined against the matching grant row.
type GrantLookup struct {
	UserID      string    `db:"user_id"`
	Token       string    `db:"token"`
	UserTokenID int64     `db:"user_token_id"`
	URI         string    `db:"uri"`
	Expire      time.Time `db:"expire"`
}
