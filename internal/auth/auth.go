// Package auth issues and verifies the HS256 JWT access tokens used by
// both the REST API and the WebSocket upgrade handshake.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claims
// validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims carries the authenticated identity inside the JWT.
type Claims struct {
	UserID   int64  `json:"uid"`
	UserName string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier signs and validates access tokens with a shared HS256 secret.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// NewVerifier creates a Verifier with the given secret and token lifetime.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token carrying the user's identity.
func (v *Verifier) Issue(userID int64, name, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		UserName: name,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates the token signature and expiry and returns its claims.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Authenticate verifies a token and returns the identity fields. It
// satisfies the WebSocket server's Authenticator interface.
func (v *Verifier) Authenticate(token string) (int64, string, string, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return 0, "", "", err
	}
	return claims.UserID, claims.UserName, claims.Role, nil
}
