package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"envanter/internal/models"
)

// minSecretLength is the shortest HS256 secret ValidateConfig accepts.
const minSecretLength = 32

// Claims represents the JWT claims structure. RegisteredClaims.ID carries the
// session id used for revocation.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT operations
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// ValidateConfig rejects settings that would produce weak or unusable tokens.
func (j *JWTManager) ValidateConfig() error {
	if j.secret == "" {
		return errors.New("JWT secret is required")
	}
	if len(j.secret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	}
	if j.issuer == "" {
		return errors.New("JWT issuer is required")
	}
	if j.audience == "" {
		return errors.New("JWT audience is required")
	}
	if j.expiry <= 0 {
		return errors.New("JWT expiry must be positive")
	}
	return nil
}

// Expiry is how long issued tokens stay valid.
func (j *JWTManager) Expiry() time.Duration {
	return j.expiry
}

// GenerateToken creates a new JWT token for one session and returns it with
// its expiry time.
func (j *JWTManager) GenerateToken(userID, email, role, sessionID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	if !models.IsValidRole(role) {
		return "", time.Time{}, fmt.Errorf("invalid role %q", role)
	}
	if sessionID == "" {
		return "", time.Time{}, errors.New("session id is required")
	}

	now := time.Now()
	expiresAt := now.Add(j.expiry)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, issuer, audience and lifetime and returns
// the claims. Only HS256 is accepted.
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(j.secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// HasRole checks if the user has any of the required roles
func (c *Claims) HasRole(requiredRoles ...string) bool {
	for _, required := range requiredRoles {
		if c.Role == required {
			return true
		}
	}
	return false
}

// IsExpiringSoon reports whether the token expires within d. Expired tokens
// count as expiring soon.
func (c *Claims) IsExpiringSoon(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) <= d
}

// ExpiresAt reads the exp claim without checking the signature. Clients use
// it to drop a stored token that has already lapsed; the server still
// decides whether the token is valid.
func ExpiresAt(tokenString string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
