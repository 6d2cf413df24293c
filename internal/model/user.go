package model

import "time"

// User is a registered account. Passwords are stored as SHA-256 hex digests
// and never serialized back to clients.
type User struct {
	ID       int64      `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	Gender   bool       `json:"gender" db:"gender"`
	Age      int        `json:"age" db:"age"`
	Birth    *string    `json:"birth,omitempty" db:"birth"`
	Phone    string     `json:"phone" db:"phone"`
	Email    *string    `json:"email,omitempty" db:"email"`
	Password string     `json:"-" db:"password"`
	Address  *string    `json:"address,omitempty" db:"address"`
	Avatar   *string    `json:"avatar,omitempty" db:"avatar"`
	IsActive bool       `json:"is_active" db:"is_active"`
	Created  time.Time  `json:"created" db:"created"`
	Updated  time.Time  `json:"updated" db:"updated"`
}

// RegisterUser is the payload accepted by the registration endpoint.
type RegisterUser struct {
	Name     string `json:"name"`
	Gender   bool   `json:"gender"`
	Age      int    `json:"age"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	IsActive bool   `json:"is_active"`
}

// Login is the payload accepted by the login endpoint. Fields are pointers
// so the validator can distinguish missing from empty.
type Login struct {
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// UserInfo is the profile returned by /user/info. Token carries a refreshed
// session token when keep-alive is enabled, otherwise it is empty.
type UserInfo struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}
