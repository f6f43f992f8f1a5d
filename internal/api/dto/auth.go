package dto

import (
	"github.com/hugh/go-assess/internal/api/validation"
	"github.com/hugh/go-assess/internal/database/models"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`

	// Optional organization created with the account
	OrgName       string `json:"org_name,omitempty"`
	EmailDomain   string `json:"email_domain,omitempty"`
	WebsiteDomain string `json:"website_domain,omitempty"`
	ExternalIP    string `json:"external_ip,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email address"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.EmailDomain != "" && !validation.IsValidDomain(r.EmailDomain) {
		errors["email_domain"] = "Invalid domain"
	}
	if r.WebsiteDomain != "" && !validation.IsValidDomain(r.WebsiteDomain) {
		errors["website_domain"] = "Invalid domain"
	}
	if r.ExternalIP != "" && !validation.IsValidIP(r.ExternalIP) {
		errors["external_ip"] = "Invalid IP address"
	}
	if r.OrgName == "" && (r.EmailDomain != "" || r.WebsiteDomain != "" || r.ExternalIP != "") {
		errors["org_name"] = "Organization name is required when organization details are given"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type PreferencesRequest struct {
	FontSize      *string `json:"font_size,omitempty"`
	Theme         *string `json:"theme,omitempty"`
	AutoFrequency *string `json:"auto_frequency,omitempty"`
}

func (r PreferencesRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FontSize != nil {
		switch *r.FontSize {
		case "small", "medium", "large":
		default:
			errors["font_size"] = "Font size must be small, medium, or large"
		}
	}
	if r.Theme != nil && *r.Theme != "dark" && *r.Theme != "light" {
		errors["theme"] = "Theme must be dark or light"
	}
	if r.AutoFrequency != nil && !models.AutoFrequency(*r.AutoFrequency).Valid() {
		errors["auto_frequency"] = "Frequency must be none, monthly, quarterly, or yearly"
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	OrganizationID *string  `json:"organization_id"`
	OrgName        string   `json:"org_name,omitempty"`
	Capabilities   []string `json:"capabilities"`
	FontSize       string   `json:"font_size"`
	Theme          string   `json:"theme"`
	AutoFrequency  string   `json:"auto_frequency"`
	NextAutoRunAt  int64    `json:"next_auto_run_at,omitempty"`
}

func NewUserDTO(u *models.User) UserDTO {
	d := UserDTO{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Capabilities:  make([]string, 0, len(u.Capabilities)),
		FontSize:      u.FontSize,
		Theme:         u.Theme,
		AutoFrequency: string(u.AutoFrequency),
		NextAutoRunAt: u.NextAutoRunAt,
	}
	if u.OrganizationID != nil {
		id := u.OrganizationID.String()
		d.OrganizationID = &id
	}
	if u.Organization != nil {
		d.OrgName = u.Organization.Name
	}
	for _, c := range u.Capabilities {
		d.Capabilities = append(d.Capabilities, string(c))
	}
	return d
}
