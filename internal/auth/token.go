package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/contacts-service/internal/domain"
)

var (
	// ErrInvalidToken covers bad signatures, wrong algorithm, malformed
	// payloads, missing subject and purpose mismatch.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned once the current time reaches exp.
	ErrExpiredToken = errors.New("token expired")
)

// TokenConfig carries the process-wide signing settings.
type TokenConfig struct {
	Secret    string
	Algorithm string
	AccessTTL time.Duration
	EmailTTL  time.Duration
	ResetTTL  time.Duration
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret    []byte
	method    jwt.SigningMethod
	accessTTL time.Duration
	emailTTL  time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

// NewTokenManager builds a new manager. Only HMAC algorithms are accepted.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	tm := &TokenManager{
		secret:    []byte(cfg.Secret),
		method:    method,
		accessTTL: cfg.AccessTTL,
		emailTTL:  cfg.EmailTTL,
		resetTTL:  cfg.ResetTTL,
		now:       time.Now,
	}
	if tm.accessTTL <= 0 {
		tm.accessTTL = time.Hour
	}
	if tm.emailTTL <= 0 {
		tm.emailTTL = 7 * 24 * time.Hour
	}
	if tm.resetTTL <= 0 {
		tm.resetTTL = time.Hour
	}
	return tm, nil
}

// Claims describes JWT payload.
type Claims struct {
	Purpose domain.TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs an access token for username. A zero ttl uses the
// configured access lifetime.
func (tm *TokenManager) IssueAccessToken(username string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = tm.accessTTL
	}
	return tm.issue(username, domain.TokenPurposeAccess, ttl)
}

// IssueEmailToken signs an email confirmation token for email.
func (tm *TokenManager) IssueEmailToken(email string) (string, time.Time, error) {
	return tm.issue(email, domain.TokenPurposeEmailConfirmation, tm.emailTTL)
}

// IssueResetToken signs a password reset token for email.
func (tm *TokenManager) IssueResetToken(email string) (string, time.Time, error) {
	return tm.issue(email, domain.TokenPurposePasswordReset, tm.resetTTL)
}

func (tm *TokenManager) issue(subject string, purpose domain.TokenPurpose, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(tm.method, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature, algorithm and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectFor parses tokenStr and returns its subject, requiring the token
// to have been issued for purpose.
func (tm *TokenManager) SubjectFor(tokenStr string, purpose domain.TokenPurpose) (string, error) {
	claims, err := tm.ParseToken(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purpose {
		return "", fmt.Errorf("%w: purpose %q, want %q", ErrInvalidToken, claims.Purpose, purpose)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
