// Package auth provides JWT issuing and validation plus password hashing
// for the HTTP API.
package auth

// UserClaims are the application claims embedded in access tokens
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// AuthError is a coded authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized"}
)
