// Package auth carries the bearer-token middleware and the user lookup
// used across the HTTP surface. User lifecycle itself lives outside the
// core; tokens are minted by the account service with the shared secret.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ojcore/internal/model"

	appErr "ojcore/pkg/errors"
)

// Config holds token settings.
type Config struct {
	Secret     string        `yaml:"secret"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookieName"`
}

func (c Config) normalized() Config {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.CookieName == "" {
		c.CookieName = "access_token"
	}
	return c
}

// Claims is the token payload.
type Claims struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	IsStaff  bool       `json:"is_staff"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens.
type TokenManager struct {
	cfg Config
}

// NewTokenManager creates a token manager.
func NewTokenManager(cfg Config) *TokenManager {
	return &TokenManager{cfg: cfg.normalized()}
}

// CookieName returns the cookie the middleware reads first.
func (m *TokenManager) CookieName() string {
	return m.cfg.CookieName
}

// Generate signs a token for the user.
func (m *TokenManager) Generate(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		IsStaff:  user.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", appErr.InternalError(err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the embedded user.
func (m *TokenManager) Verify(raw string) (*model.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErr.New(appErr.CodeUnauthorized).WithMessage("Invalid or expired token")
	}
	return &model.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		IsStaff:  claims.IsStaff,
	}, nil
}

// extractToken pulls the raw token from the Authorization header value.
func extractBearer(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
