package dto

import (
	"strings"

	"github.com/hugh/go-assess/internal/api/validation"
	"github.com/hugh/go-assess/internal/database/models"
)

type PostureRequest struct {
	EmailDomain                 *string `json:"email_domain,omitempty"`
	WebsiteDomain               *string `json:"website_domain,omitempty"`
	ExternalIP                  *string `json:"external_ip,omitempty"`
	RequireMFAEmail             *bool   `json:"require_mfa_email,omitempty"`
	RequireMFASensitiveData     *bool   `json:"require_mfa_sensitive_data,omitempty"`
	EmployeeAcceptableUsePolicy *bool   `json:"employee_acceptable_use_policy,omitempty"`
	TrainingNewEmployees        *bool   `json:"training_new_employees,omitempty"`
	TrainingOncePerYear         *bool   `json:"training_once_per_year,omitempty"`
}

func (r PostureRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.EmailDomain != nil && *r.EmailDomain != "" && !validation.IsValidDomain(*r.EmailDomain) {
		errors["email_domain"] = "Invalid domain"
	}
	if r.WebsiteDomain != nil && *r.WebsiteDomain != "" && !validation.IsValidDomain(*r.WebsiteDomain) {
		errors["website_domain"] = "Invalid domain"
	}
	if r.ExternalIP != nil && *r.ExternalIP != "" && !validation.IsValidIP(*r.ExternalIP) {
		errors["external_ip"] = "Invalid IP address"
	}

	return errors
}

// Updates returns the changed columns.
func (r PostureRequest) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.EmailDomain != nil {
		updates["email_domain"] = validation.NormalizeDomain(*r.EmailDomain)
	}
	if r.WebsiteDomain != nil {
		updates["website_domain"] = validation.NormalizeDomain(*r.WebsiteDomain)
	}
	if r.ExternalIP != nil {
		updates["external_ip"] = strings.TrimSpace(*r.ExternalIP)
	}
	if r.RequireMFAEmail != nil {
		updates["require_mfa_email"] = *r.RequireMFAEmail
	}
	if r.RequireMFASensitiveData != nil {
		updates["require_mfa_sensitive_data"] = *r.RequireMFASensitiveData
	}
	if r.EmployeeAcceptableUsePolicy != nil {
		updates["employee_acceptable_use_policy"] = *r.EmployeeAcceptableUsePolicy
	}
	if r.TrainingNewEmployees != nil {
		updates["training_new_employees"] = *r.TrainingNewEmployees
	}
	if r.TrainingOncePerYear != nil {
		updates["training_once_per_year"] = *r.TrainingOncePerYear
	}
	return updates
}

type InviteRequest struct {
	Email        string   `json:"email"`
	Role         string   `json:"role,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (r InviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email address"
	}
	switch r.Role {
	case "", "member", "admin":
	default:
		errors["role"] = "Role must be member or admin"
	}
	if msg := validateCapabilities(r.Capabilities); msg != "" {
		errors["capabilities"] = msg
	}

	return errors
}

type CapabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

func (r CapabilitiesRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Capabilities == nil {
		errors["capabilities"] = "Capabilities are required"
	} else if msg := validateCapabilities(r.Capabilities); msg != "" {
		errors["capabilities"] = msg
	}
	return errors
}

// ParseCapabilities converts validated names. A nil input stays nil.
func ParseCapabilities(names []string) []models.Capability {
	if names == nil {
		return nil
	}
	caps := make([]models.Capability, 0, len(names))
	for _, n := range names {
		caps = append(caps, models.Capability(n))
	}
	return caps
}

func validateCapabilities(names []string) string {
	for _, n := range names {
		known := false
		for _, c := range models.AllCapabilities {
			if models.Capability(n) == c {
				known = true
				break
			}
		}
		if !known {
			return "Unknown capability: " + n
		}
	}
	return ""
}

type OrganizationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	models.Posture
	Members []UserDTO `json:"members,omitempty"`
}

func NewOrganizationResponse(org *models.Organization, members []models.User) OrganizationResponse {
	resp := OrganizationResponse{
		ID:      org.ID.String(),
		Name:    org.Name,
		Slug:    org.Slug,
		Posture: org.Posture(),
	}
	for i := range members {
		resp.Members = append(resp.Members, NewUserDTO(&members[i]))
	}
	return resp
}
