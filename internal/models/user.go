package models

import (
	"slices"
	"time"
)

// User is an account record.
//
// Tokens holds the session tokens currently considered valid for the account,
// in issue order. Entries carry no expiry of their own: the expiry is sealed
// inside each token.
type User struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"password_hash"`
	EmailToken   string    `json:"email_token,omitempty"`
	Tokens       []string  `json:"tokens"`
	IsVerified   bool      `json:"is_verified"`
	Admin        bool      `json:"admin"`
}

// AppendToken adds a session token to the end of the list.
func (u *User) AppendToken(token string) {
	u.Tokens = append(u.Tokens, token)
}

// RemoveToken deletes token from the list and reports whether it was present.
// Other sessions of the same account are left untouched.
func (u *User) RemoveToken(token string) bool {
	idx := slices.Index(u.Tokens, token)
	if idx < 0 {
		return false
	}
	u.Tokens = slices.Delete(u.Tokens, idx, idx+1)
	return true
}

// HasToken reports whether token is one of the account's active sessions.
func (u *User) HasToken(token string) bool {
	return token != "" && slices.Contains(u.Tokens, token)
}

// MarkVerified completes email verification: the account becomes verified
// and the single-use email token is discarded.
func (u *User) MarkVerified() {
	u.IsVerified = true
	u.EmailToken = ""
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
