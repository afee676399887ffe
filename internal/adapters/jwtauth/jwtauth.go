// Package jwtauth verifies HS256 bearer tokens issued by the account service.
package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("token carries no subject")

// Subject accepts the user id claim as either a JSON string or number.
type Subject string

func (s *Subject) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Subject(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id claim: %w", err)
	}
	*s = Subject(n.String())
	return nil
}

// Claims is the payload the account service signs. The user id lives in "id";
// "sub" is accepted as a fallback.
type Claims struct {
	UserID Subject `json:"id,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) subject() string {
	if c.UserID != "" {
		return string(c.UserID)
	}
	return c.Subject
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	v := &Verifier{secret: []byte(secret), now: time.Now}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v
}

// VerifyToken checks signature and expiry and returns the subject.
func (v *Verifier) VerifyToken(_ context.Context, token string) (string, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return "", err
	}
	sub := claims.subject()
	if sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

// Issue signs a token for subject. A zero ttl yields a token without expiry.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID:           Subject(subject),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
