package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends JWT standard claims with the account name.
// Subject holds the numeric user id and ID (jti) identifies the token for
// revocation.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// UserID returns the numeric user id carried in the subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return id, nil
}

// GenerateAccessToken creates a signed HS256 token for user, valid for ttl
// from now.
func GenerateAccessToken(user *User, secret string, ttl time.Duration, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates and parses a JWT access token, returning its claims.
// It checks the signature, expiry and required fields.
func ParseToken(tokenString, secret string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}

	return claims, nil
}
