package types

import "time"

// User represents an identity in the system.
// Its JSON form is the public view: secrets are never serialized.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the unique login name, stored lower case.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address, stored lower case.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"fullname" db:"fullname"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshToken is the most recently issued refresh token, or empty
	// when the user is logged out. Never exposed in API responses.
	RefreshToken string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent account update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
