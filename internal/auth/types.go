package auth

import (
	"regexp"
	"time"
	"unicode/utf8"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidateCredentials checks the shape of a register request.
func ValidateCredentials(username, password string) error {
	verr := &ValidationError{}

	if username == "" {
		verr.Add("username", "is required")
	} else if !IsValidUsername(username) {
		verr.Add("username", "must be 1-64 letters, digits, dots, hyphens or underscores")
	}

	switch n := utf8.RuneCountInString(password); {
	case n == 0:
		verr.Add("password", "is required")
	case n < minPasswordLength:
		verr.Add("password", "must be at least 8 characters")
	case n > maxPasswordLength:
		verr.Add("password", "must be at most 256 characters")
	}

	return verr.Err()
}

// User represents an authenticated account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the result of a successful register or login.
type Session struct {
	User        *User  `json:"user"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}
