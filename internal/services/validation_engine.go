package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
)

var npiPattern = regexp.MustCompile(`^\d{10}$`)

// Validation messages
const (
	MsgEmailRequired       = "email is required"
	MsgEmailInvalid        = "email format is invalid"
	MsgPhoneRequired       = "phone is required"
	MsgPhoneUnrecognized   = "phone number format not recognized"
	MsgNPIMissing          = "npi not provided"
	MsgNPIRequiredForAPI   = "npi is required for api intake"
	MsgNPIFormat           = "npi must be exactly 10 digits"
	MsgLicensePending      = "license verification pending"
	MsgAddressNotValidated = "address not validated"
	MsgPrimarySpecialty    = "exactly one primary specialty is required"
	MsgDateOfBirthMissing  = "date of birth not provided"
	MsgGenderMissing       = "gender not provided"
	MsgSSNMissing          = "ssn not provided"
)

// ValidationEngine computes the validation findings of a provider
type ValidationEngine struct {
	validate *validator.Validate
}

// NewValidationEngine creates a validation engine
func NewValidationEngine() *ValidationEngine {
	return &ValidationEngine{validate: validator.New()}
}

// Validate runs every rule in a fixed order. It reads nothing but p and now, so the
// same inputs always give the same findings. The result is never nil.
func (e *ValidationEngine) Validate(p *models.Provider, now time.Time) []models.ValidationError {
	out := make([]models.ValidationError, 0)
	add := func(field, msg string, sev models.Severity) {
		out = append(out, models.ValidationError{Field: field, Message: msg, Severity: sev})
	}

	email := strings.TrimSpace(p.Contact.Email)
	switch {
	case email == "":
		add("contact.email", MsgEmailRequired, models.SeverityError)
	case e.validate.Var(email, "email") != nil:
		add("contact.email", MsgEmailInvalid, models.SeverityError)
	}

	phone := strings.TrimSpace(p.Contact.Phone)
	switch {
	case phone == "":
		add("contact.phone", MsgPhoneRequired, models.SeverityError)
	case !utils.IsPossiblePhone(phone):
		add("contact.phone", MsgPhoneUnrecognized, models.SeverityWarning)
	}

	api := p.IntakeSource == models.IntakeAPI
	npiSeverity := models.SeverityWarning
	if api {
		npiSeverity = models.SeverityError
	}
	npi := p.EffectiveNPI()
	switch {
	case npi == "" && api:
		add("npi", MsgNPIRequiredForAPI, models.SeverityError)
	case npi == "":
		add("npi", MsgNPIMissing, models.SeverityWarning)
	case !npiPattern.MatchString(npi):
		add("npi", MsgNPIFormat, npiSeverity)
	}

	if !hasActiveLicense(p.Credentials.StateLicenses, now) {
		add("credentials.stateLicenses", MsgLicensePending, models.SeverityWarning)
	}

	if !p.Contact.Address.IsValidated {
		add("contact.address", MsgAddressNotValidated, models.SeverityError)
	}

	if len(p.Credentials.Specialties) > 0 && p.PrimarySpecialtyCount() != 1 {
		add("credentials.specialties", MsgPrimarySpecialty, models.SeverityError)
	}

	if strings.TrimSpace(p.Demographics.DateOfBirth) == "" {
		add("demographics.dateOfBirth", MsgDateOfBirthMissing, models.SeverityWarning)
	}
	if strings.TrimSpace(p.Demographics.Gender) == "" {
		add("demographics.gender", MsgGenderMissing, models.SeverityWarning)
	}
	if strings.TrimSpace(p.Demographics.SSN) == "" {
		add("demographics.ssn", MsgSSNMissing, models.SeverityWarning)
	}

	return out
}

func hasActiveLicense(licenses []models.StateLicense, now time.Time) bool {
	for _, l := range licenses {
		if l.IsActiveAt(now) {
			return true
		}
	}
	return false
}

// HasErrors reports whether any finding has error severity
func HasErrors(findings []models.ValidationError) bool {
	for _, f := range findings {
		if f.Severity == models.SeverityError {
			return true
		}
	}
	return false
}
