package service

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

// dummyHash is a syntactically valid bcrypt hash compared against when the
// login itself is unknown; the result is discarded either way.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthService authenticates the service accounts allowed to drive the
// bridge. Accounts are static config entries, not database rows: the only
// callers are course platforms, and those are provisioned by operators.
type AuthService struct {
	secret   []byte
	expiry   time.Duration
	accounts map[string]string
	logger   *zap.Logger
}

// NewAuthService parses the configured "login:bcrypt-hash" account pairs.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	accounts := make(map[string]string, len(cfg.Accounts))
	for _, entry := range cfg.Accounts {
		login, hash, ok := strings.Cut(entry, ":")
		if !ok || login == "" || hash == "" {
			logger.Warn("skipping malformed service account entry")
			continue
		}
		accounts[login] = hash
	}
	return &AuthService{
		secret:   []byte(cfg.TokenSecret),
		expiry:   cfg.TokenExpiration,
		accounts: accounts,
		logger:   logger,
	}
}

// Login verifies the credentials and issues a signed token.
func (s *AuthService) Login(login, password string) (string, time.Time, error) {
	hash, ok := s.accounts[login]
	if !ok {
		// Burn a comparison anyway so absent and wrong cost the same.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", time.Time{}, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", time.Time{}, appErrors.ErrInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(s.expiry)
	claims := models.JWTClaims{
		Login: login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return token, expiresAt, nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *AuthService) ValidateToken(token string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}
