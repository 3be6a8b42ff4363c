package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("token is missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("secret key is required")
)

// Claims are the JWT claims issued at login.
type Claims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens and remembers revoked token ids until they expire.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenManager requires a non-empty secret.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}, nil
}

// Issue signs a token for username and returns it with its expiry.
func (m *TokenManager) Issue(username string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		User: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates signature, expiry and revocation.
func (m *TokenManager) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.User == "" {
		return nil, ErrInvalidToken
	}
	if m.isRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return &claims, nil
}

// Revoke invalidates a token until its natural expiry.
func (m *TokenManager) Revoke(token string) error {
	claims, err := m.Parse(token)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}

func (m *TokenManager) isRevoked(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[id]
	return ok
}

// ExtractToken picks the first non-empty candidate and strips a Bearer prefix.
// Callers pass the header, form field and query parameter in that order.
func ExtractToken(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if len(c) > 7 && strings.EqualFold(c[:7], "bearer ") {
			c = strings.TrimSpace(c[7:])
		}
		return c
	}
	return ""
}
