package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrAlreadyAffiliated  = errors.New("user already belongs to an organization")
)

// DefaultMemberCapabilities is what an invited member receives when the
// inviter does not choose explicitly.
var DefaultMemberCapabilities = []models.Capability{
	models.CapGenerateReport,
	models.CapViewRisk,
}

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string

	// Optional: create a new organization owned by this user. Without it
	// the user stays unaffiliated until invited.
	OrgName       string
	EmailDomain   string
	WebsiteDomain string
	ExternalIP    string
}

type LoginInput struct {
	Email    string
	Password string
}

type PreferencesInput struct {
	FontSize      *string
	Theme         *string
	AutoFrequency *models.AutoFrequency
	NextAutoRunAt int64
}

type MemberInput struct {
	Email        string
	Role         string
	Capabilities []models.Capability
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         "member",
		IsActive:     true,
		Capabilities: []models.Capability{},
	}

	var org *models.Organization
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.OrgName != "" {
			org = &models.Organization{
				Name:          input.OrgName,
				Slug:          generateSlug(input.OrgName),
				EmailDomain:   input.EmailDomain,
				WebsiteDomain: input.WebsiteDomain,
				ExternalIP:    input.ExternalIP,
			}
			if err := tx.Create(org).Error; err != nil {
				return err
			}
			user.OrganizationID = &org.ID
			user.Role = "owner"
			user.Capabilities = append([]models.Capability(nil), models.AllCapabilities...)
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.TokenFor(&user)
	if err != nil {
		return nil, err
	}

	user.Organization = org

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.TokenFor(&user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, id uuid.UUID, input PreferencesInput) (*models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.FontSize != nil {
		updates["font_size"] = *input.FontSize
	}
	if input.Theme != nil {
		updates["theme"] = *input.Theme
	}
	if input.AutoFrequency != nil {
		updates["auto_frequency"] = *input.AutoFrequency
		updates["next_auto_run_at"] = input.NextAutoRunAt
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// AddMember attaches an existing unaffiliated user to an organization.
func (s *Service) AddMember(ctx context.Context, orgID uuid.UUID, input MemberInput) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.OrganizationID != nil {
		return nil, ErrAlreadyAffiliated
	}

	role := input.Role
	if role == "" {
		role = "member"
	}
	caps := input.Capabilities
	if caps == nil {
		caps = DefaultMemberCapabilities
	}

	user.OrganizationID = &orgID
	user.Role = role
	user.Capabilities = caps
	if err := s.db.WithContext(ctx).
		Model(&user).
		Select("organization_id", "role", "capabilities").
		Updates(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetCapabilities replaces a member's capability set within an organization.
func (s *Service) SetCapabilities(ctx context.Context, orgID, userID uuid.UUID, caps []models.Capability) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", userID, orgID).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Capabilities = caps
	if err := s.db.WithContext(ctx).Model(&user).Select("capabilities").Updates(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	return slug + "-" + uuid.NewString()[:8]
}
