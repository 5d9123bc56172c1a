// Package auth implements the authentication gate: bearer token issuance and
// verification plus password hashing. Every store operation in the service is
// scoped by the user id recovered here.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("missing authorization token")
	ErrTokenInvalid = errors.New("invalid authorization token")
	ErrTokenExpired = errors.New("authorization token expired")
)

// TokenIssuer signs and verifies HS256 bearer tokens carrying the user id
// in the subject claim.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	nowFn  func() time.Time
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
		nowFn:  time.Now,
	}
}

// IssueToken returns a signed token identifying userID, valid for the
// configured expiry window.
func (ti *TokenIssuer) IssueToken(userID string) (string, error) {
	now := ti.nowFn()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates the signature and expiry of a bearer token and
// returns the user id it identifies.
func (ti *TokenIssuer) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.nowFn))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
