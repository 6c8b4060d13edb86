package models

import (
	"slices"
	"strings"
	"time"
)

// ProviderStatus is the lifecycle state of a provider
type ProviderStatus string

const (
	StatusNew                  ProviderStatus = "New"
	StatusValidationInProgress ProviderStatus = "ValidationInProgress"
	StatusValidationFailed     ProviderStatus = "ValidationFailed"
	StatusSubmitted            ProviderStatus = "Submitted"
	StatusPSVInProgress        ProviderStatus = "PSVInProgress"
	StatusPSVFailed            ProviderStatus = "PSVFailed"
	StatusCommitteePending     ProviderStatus = "CommitteePending"
	StatusCredentialed         ProviderStatus = "Credentialed"
	StatusRejected             ProviderStatus = "Rejected"
)

// AllProviderStatuses lists every lifecycle state in pipeline order
var AllProviderStatuses = []ProviderStatus{
	StatusNew,
	StatusValidationInProgress,
	StatusValidationFailed,
	StatusSubmitted,
	StatusPSVInProgress,
	StatusPSVFailed,
	StatusCommitteePending,
	StatusCredentialed,
	StatusRejected,
}

// IsTerminal reports whether no further transition is allowed
func (s ProviderStatus) IsTerminal() bool {
	return s == StatusCredentialed || s == StatusRejected
}

// IsValid reports whether s is a known lifecycle state
func (s ProviderStatus) IsValid() bool {
	for _, known := range AllProviderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IntakeSource records how a provider entered the system
type IntakeSource string

const (
	IntakeManual     IntakeSource = "manual"
	IntakeFileUpload IntakeSource = "file-upload"
	IntakeAPI        IntakeSource = "api"
)

// IsValid reports whether the intake source is one of the known channels
func (s IntakeSource) IsValid() bool {
	switch s {
	case IntakeManual, IntakeFileUpload, IntakeAPI:
		return true
	}
	return false
}

// Gender values accepted in demographics
const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer-not-to-say"
)

// Provider is a healthcare provider moving through credentialing
type Provider struct {
	ID        string `bson:"_id" json:"id"`
	Name      string `bson:"name" json:"name"`
	FirstName string `bson:"first_name" json:"firstName"`
	LastName  string `bson:"last_name" json:"lastName"`
	NPI       string `bson:"npi,omitempty" json:"npi,omitempty"`
	TIN       string `bson:"tin,omitempty" json:"tin,omitempty"`

	Contact      ContactInfo  `bson:"contact" json:"contact"`
	Demographics Demographics `bson:"demographics" json:"demographics"`
	Credentials  Credentials  `bson:"credentials" json:"credentials"`

	IntakeSource     IntakeSource      `bson:"intake_source" json:"intakeSource"`
	Status           ProviderStatus    `bson:"status" json:"status"`
	ValidationErrors []ValidationError `bson:"validation_errors" json:"validationErrors"`
	PSVStatus        PSVStatus         `bson:"psv_status" json:"psvStatus"`
	DecisionLog      []DecisionRecord  `bson:"decision_log" json:"decisionLog"`

	Version   int32     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ContactInfo holds how to reach the provider
type ContactInfo struct {
	Email   string  `bson:"email" json:"email"`
	Phone   string  `bson:"phone" json:"phone"`
	Address Address `bson:"address" json:"address"`
}

// Address is a practice address; IsValidated is set by an external standardization service
type Address struct {
	Street      string `bson:"street" json:"street"`
	City        string `bson:"city" json:"city"`
	State       string `bson:"state" json:"state"`
	ZipCode     string `bson:"zip_code" json:"zipCode"`
	IsValidated bool   `bson:"is_validated" json:"isValidated"`
}

// Demographics are optional personal details
type Demographics struct {
	DateOfBirth string `bson:"date_of_birth,omitempty" json:"dateOfBirth,omitempty"`
	Gender      string `bson:"gender,omitempty" json:"gender,omitempty"`
	SSN         string `bson:"ssn,omitempty" json:"ssn,omitempty"`
}

// Credentials groups identifiers, licenses and specialties
type Credentials struct {
	NPI           string         `bson:"npi,omitempty" json:"npi,omitempty"`
	TIN           string         `bson:"tin,omitempty" json:"tin,omitempty"`
	DEANumber     string         `bson:"dea_number,omitempty" json:"deaNumber,omitempty"`
	StateLicenses []StateLicense `bson:"state_licenses" json:"stateLicenses"`
	Specialties   []Specialty    `bson:"specialties" json:"specialties"`
}

// Specialty identifies a practice area by taxonomy code
type Specialty struct {
	TaxonomyCode string `bson:"taxonomy_code" json:"taxonomyCode"`
	Description  string `bson:"description" json:"description"`
	IsPrimary    bool   `bson:"is_primary" json:"isPrimary"`
}

// EffectiveNPI returns the identity NPI, falling back to the credentials NPI
func (p *Provider) EffectiveNPI() string {
	if npi := strings.TrimSpace(p.NPI); npi != "" {
		return npi
	}
	return strings.TrimSpace(p.Credentials.NPI)
}

// PrimarySpecialty returns the primary specialty, if exactly one is marked
func (p *Provider) PrimarySpecialty() (Specialty, bool) {
	var found Specialty
	count := 0
	for _, s := range p.Credentials.Specialties {
		if s.IsPrimary {
			found = s
			count++
		}
	}
	return found, count == 1
}

// PrimarySpecialtyCount counts specialties flagged as primary
func (p *Provider) PrimarySpecialtyCount() int {
	count := 0
	for _, s := range p.Credentials.Specialties {
		if s.IsPrimary {
			count++
		}
	}
	return count
}

// DisplayName returns Name, or first and last name joined when Name is empty
func (p *Provider) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// HasValidationErrors reports whether any entry has error severity
func (p *Provider) HasValidationErrors() bool {
	for _, e := range p.ValidationErrors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share embedded slices
func (p *Provider) Clone() *Provider {
	if p == nil {
		return nil
	}
	c := *p
	c.Credentials.StateLicenses = slices.Clone(p.Credentials.StateLicenses)
	c.Credentials.Specialties = slices.Clone(p.Credentials.Specialties)
	c.ValidationErrors = slices.Clone(p.ValidationErrors)
	c.DecisionLog = slices.Clone(p.DecisionLog)
	c.PSVStatus = p.PSVStatus.clone()
	return &c
}
