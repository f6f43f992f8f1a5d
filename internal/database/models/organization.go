package models

type Organization struct {
	Base
	Name          string `gorm:"not null" json:"name"`
	Slug          string `gorm:"uniqueIndex;not null" json:"slug"`
	EmailDomain   string `json:"email_domain,omitempty"`
	WebsiteDomain string `json:"website_domain,omitempty"`
	ExternalIP    string `json:"external_ip,omitempty"`

	// Security posture, answered by the organization owner
	RequireMFAEmail             bool `gorm:"default:false" json:"require_mfa_email"`
	RequireMFASensitiveData     bool `gorm:"default:false" json:"require_mfa_sensitive_data"`
	EmployeeAcceptableUsePolicy bool `gorm:"default:false" json:"employee_acceptable_use_policy"`
	TrainingNewEmployees        bool `gorm:"default:false" json:"training_new_employees"`
	TrainingOncePerYear         bool `gorm:"default:false" json:"training_once_per_year"`

	// Relationships
	Users     []User           `gorm:"foreignKey:OrganizationID" json:"-"`
	Reports   []Report         `gorm:"foreignKey:OrganizationID" json:"-"`
	Risks     []Risk           `gorm:"foreignKey:OrganizationID" json:"-"`
	Documents []SourceDocument `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Posture is the questionnaire-derived view of an organization that is fed
// into report generation alongside uploaded scan documents.
type Posture struct {
	OrganizationName            string `json:"organization_name"`
	EmailDomain                 string `json:"email_domain"`
	WebsiteDomain               string `json:"website_domain"`
	ExternalIP                  string `json:"external_ip"`
	RequireMFAEmail             bool   `json:"require_mfa_email"`
	RequireMFASensitiveData     bool   `json:"require_mfa_sensitive_data"`
	EmployeeAcceptableUsePolicy bool   `json:"employee_acceptable_use_policy"`
	TrainingNewEmployees        bool   `json:"training_new_employees"`
	TrainingOncePerYear         bool   `json:"training_once_per_year"`
}

func (o *Organization) Posture() Posture {
	return Posture{
		OrganizationName:            o.Name,
		EmailDomain:                 o.EmailDomain,
		WebsiteDomain:               o.WebsiteDomain,
		ExternalIP:                  o.ExternalIP,
		RequireMFAEmail:             o.RequireMFAEmail,
		RequireMFASensitiveData:     o.RequireMFASensitiveData,
		EmployeeAcceptableUsePolicy: o.EmployeeAcceptableUsePolicy,
		TrainingNewEmployees:        o.TrainingNewEmployees,
		TrainingOncePerYear:         o.TrainingOncePerYear,
	}
}
