// Package auth issues and validates presenter identity tokens. Identity
// management itself (accounts, passwords) lives outside this service; the
// engine only needs a predicate answering "may this caller control that
// session", and the token carries the presenter ID that predicate compares.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identify the presenter controlling sessions.
type Claims struct {
	PresenterID string `json:"presenter_id"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig holds signing configuration.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration // default: 8 hours, a school day
	Issuer string
}

// Manager signs and validates presenter tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewManager(cfg TokenConfig) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = 8 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "live-quiz"
	}
	return &Manager{secret: cfg.Secret, ttl: cfg.TTL, issuer: cfg.Issuer}
}

// Generate creates a signed presenter token.
func (m *Manager) Generate(presenterID, displayName string) (string, error) {
	now := time.Now()
	claims := Claims{
		PresenterID: presenterID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   presenterID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PresenterID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
