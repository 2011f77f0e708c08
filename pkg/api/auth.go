package api

import "time"

// Error categories carried in ErrorResponse.Error
const (
	CategoryClientError     = "client_error"
	CategoryUnauthenticated = "unauthenticated"
	CategoryForbidden       = "forbidden"
	CategoryNotFound        = "not_found"
	CategoryInternalError   = "internal_error"
	CategoryRateLimited     = "rate_limited"
)

// RegisterRequest is the body of POST /user/signup
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// RegisterResponse is returned after a successful signup
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// LoginRequest is the body of POST /user/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued session token
type TokenResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"` // seconds
}

// ResendVerificationRequest is the body of POST /user/verify-email/resend
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// HomeResponse greets the authenticated user
type HomeResponse struct {
	Msg string `json:"msg"`
}

// UserView is the public projection of an account.
// It never carries password hashes, email tokens or session tokens.
type UserView struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstname"`
	LastName   string    `json:"lastname"`
	Sessions   int       `json:"sessions"`
	IsVerified bool      `json:"is_verified"`
	Admin      bool      `json:"admin"`
}

// DumpResponse is the admin listing of all accounts
type DumpResponse struct {
	Users  []UserView `json:"users"`
	Purged int        `json:"purged,omitempty"`
}

// HealthResponse reports service status
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`             // error category
	Message string `json:"message,omitempty"` // human readable description
}
