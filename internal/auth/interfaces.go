package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
)

// Authenticator covers the self-service account endpoints.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, input PreferencesInput) (*models.User, error)
}

// MemberManager changes who belongs to an organization and what they may do.
type MemberManager interface {
	AddMember(ctx context.Context, orgID uuid.UUID, input MemberInput) (*models.User, error)
	SetCapabilities(ctx context.Context, orgID, userID uuid.UUID, caps []models.Capability) (*models.User, error)
}

// TokenValidator is all the request middleware needs from the token service.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

var (
	_ Authenticator  = (*Service)(nil)
	_ MemberManager  = (*Service)(nil)
	_ TokenValidator = (*JWTService)(nil)
)
