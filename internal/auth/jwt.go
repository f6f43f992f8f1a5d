package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
)

const issuer = "go-assess"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the session identity. OrganizationID is uuid.Nil for users
// who have not joined an organization yet. Capabilities are not carried;
// they are reloaded on every request so revocation takes effect at once.
type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Affiliated() bool {
	return c.OrganizationID != uuid.Nil
}

type JWTService struct {
	secret []byte
	expiry time.Duration
	leeway time.Duration
	now    func() time.Time
}

type JWTOption func(*JWTService)

// WithClock replaces time.Now for issuing and checking tokens.
func WithClock(now func() time.Time) JWTOption {
	return func(s *JWTService) { s.now = now }
}

// WithLeeway tolerates clock skew between the API and worker hosts.
func WithLeeway(d time.Duration) JWTOption {
	return func(s *JWTService) { s.leeway = d }
}

func NewJWTService(secret string, expiry time.Duration, opts ...JWTOption) *JWTService {
	s := &JWTService{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JWTService) Expiry() time.Duration {
	return s.expiry
}

// TokenFor issues a session token for user.
func (s *JWTService) TokenFor(user *models.User) (string, error) {
	return s.GenerateToken(user.ID, user.OrgID(), user.Email, user.Role)
}

func (s *JWTService) GenerateToken(userID, orgID uuid.UUID, email, role string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:         userID,
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, ErrInvalidToken
	}

	if claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
