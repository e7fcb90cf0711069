package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Verifier turns a bearer token into the Session passed to every remote
// call. The token itself is forwarded unchanged to the summarization
// service.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Sign issues an HS256 token whose subject is username.
func (v *Verifier) Sign(username string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwtlib.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify validates tokenStr and returns the session it names. Every
// failure wraps util.ErrAuth.
func (v *Verifier) Verify(tokenStr string) (models.Session, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return models.Session{}, fmt.Errorf("%w: missing token", util.ErrAuth)
	}
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwtlib.WithTimeFunc(v.now))
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", util.ErrAuth, err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.Session{}, fmt.Errorf("%w: token has no subject", util.ErrAuth)
	}
	return models.Session{Username: claims.Subject, Token: tokenStr}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
