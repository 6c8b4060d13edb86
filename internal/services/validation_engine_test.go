package services

import (
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func findingFor(findings []models.ValidationError, field string) (models.ValidationError, bool) {
	for _, f := range findings {
		if f.Field == field {
			return f, true
		}
	}
	return models.ValidationError{}, false
}

func TestValidationEngine_ValidProviderHasNoFindings(t *testing.T) {
	engine := NewValidationEngine()
	findings := engine.Validate(testutil.ValidProvider("p1", testNow), testNow)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestValidationEngine_Rules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *models.Provider)
		field    string
		message  string
		severity models.Severity
	}{
		{
			name:     "missing email",
			mutate:   func(p *models.Provider) { p.Contact.Email = "  " },
			field:    "contact.email",
			message:  MsgEmailRequired,
			severity: models.SeverityError,
		},
		{
			name:     "malformed email",
			mutate:   func(p *models.Provider) { p.Contact.Email = "john.smith@" },
			field:    "contact.email",
			message:  MsgEmailInvalid,
			severity: models.SeverityError,
		},
		{
			name:     "missing phone",
			mutate:   func(p *models.Provider) { p.Contact.Phone = "" },
			field:    "contact.phone",
			message:  MsgPhoneRequired,
			severity: models.SeverityError,
		},
		{
			name:     "implausible phone",
			mutate:   func(p *models.Provider) { p.Contact.Phone = "12" },
			field:    "contact.phone",
			message:  MsgPhoneUnrecognized,
			severity: models.SeverityWarning,
		},
		{
			name: "missing npi manual",
			mutate: func(p *models.Provider) {
				p.NPI = ""
				p.Credentials.NPI = ""
			},
			field:    "npi",
			message:  MsgNPIMissing,
			severity: models.SeverityWarning,
		},
		{
			name: "missing npi api",
			mutate: func(p *models.Provider) {
				p.NPI = ""
				p.Credentials.NPI = ""
				p.IntakeSource = models.IntakeAPI
			},
			field:    "npi",
			message:  MsgNPIRequiredForAPI,
			severity: models.SeverityError,
		},
		{
			name:     "short npi manual",
			mutate:   func(p *models.Provider) { p.NPI = "12345" },
			field:    "npi",
			message:  MsgNPIFormat,
			severity: models.SeverityWarning,
		},
		{
			name: "short npi file upload",
			mutate: func(p *models.Provider) {
				p.NPI = "12345"
				p.IntakeSource = models.IntakeFileUpload
			},
			field:    "npi",
			message:  MsgNPIFormat,
			severity: models.SeverityWarning,
		},
		{
			name: "short npi api",
			mutate: func(p *models.Provider) {
				p.NPI = "12345"
				p.IntakeSource = models.IntakeAPI
			},
			field:    "npi",
			message:  MsgNPIFormat,
			severity: models.SeverityError,
		},
		{
			name:     "no licenses",
			mutate:   func(p *models.Provider) { p.Credentials.StateLicenses = nil },
			field:    "credentials.stateLicenses",
			message:  MsgLicensePending,
			severity: models.SeverityWarning,
		},
		{
			name: "active license already expired",
			mutate: func(p *models.Provider) {
				p.Credentials.StateLicenses[0].ExpirationDate = testNow.AddDate(0, 0, -1)
			},
			field:    "credentials.stateLicenses",
			message:  MsgLicensePending,
			severity: models.SeverityWarning,
		},
		{
			name: "license expiring exactly now",
			mutate: func(p *models.Provider) {
				p.Credentials.StateLicenses[0].ExpirationDate = testNow
			},
			field:    "credentials.stateLicenses",
			message:  MsgLicensePending,
			severity: models.SeverityWarning,
		},
		{
			name: "suspended license",
			mutate: func(p *models.Provider) {
				p.Credentials.StateLicenses[0].Status = models.LicenseSuspended
			},
			field:    "credentials.stateLicenses",
			message:  MsgLicensePending,
			severity: models.SeverityWarning,
		},
		{
			name:     "address not validated",
			mutate:   func(p *models.Provider) { p.Contact.Address.IsValidated = false },
			field:    "contact.address",
			message:  MsgAddressNotValidated,
			severity: models.SeverityError,
		},
		{
			name: "two primary specialties",
			mutate: func(p *models.Provider) {
				p.Credentials.Specialties = append(p.Credentials.Specialties,
					models.Specialty{TaxonomyCode: "207R00000X", Description: "Internal Medicine", IsPrimary: true})
			},
			field:    "credentials.specialties",
			message:  MsgPrimarySpecialty,
			severity: models.SeverityError,
		},
		{
			name: "no primary specialty",
			mutate: func(p *models.Provider) {
				p.Credentials.Specialties[0].IsPrimary = false
			},
			field:    "credentials.specialties",
			message:  MsgPrimarySpecialty,
			severity: models.SeverityError,
		},
		{
			name:     "missing date of birth",
			mutate:   func(p *models.Provider) { p.Demographics.DateOfBirth = "" },
			field:    "demographics.dateOfBirth",
			message:  MsgDateOfBirthMissing,
			severity: models.SeverityWarning,
		},
		{
			name:     "missing gender",
			mutate:   func(p *models.Provider) { p.Demographics.Gender = "" },
			field:    "demographics.gender",
			message:  MsgGenderMissing,
			severity: models.SeverityWarning,
		},
		{
			name:     "missing ssn",
			mutate:   func(p *models.Provider) { p.Demographics.SSN = "" },
			field:    "demographics.ssn",
			message:  MsgSSNMissing,
			severity: models.SeverityWarning,
		},
	}

	engine := NewValidationEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.ValidProvider("p1", testNow)
			tt.mutate(p)

			findings := engine.Validate(p, testNow)
			require.Len(t, findings, 1, "%+v", findings)
			assert.Equal(t, models.ValidationError{Field: tt.field, Message: tt.message, Severity: tt.severity}, findings[0])
			assert.Equal(t, tt.severity == models.SeverityError, HasErrors(findings))
		})
	}
}

func TestValidationEngine_EmptySpecialtiesAllowed(t *testing.T) {
	p := testutil.ValidProvider("p1", testNow)
	p.Credentials.Specialties = nil

	_, found := findingFor(NewValidationEngine().Validate(p, testNow), "credentials.specialties")
	assert.False(t, found)
}

func TestValidationEngine_FixedOrder(t *testing.T) {
	p := &models.Provider{ID: "p1", IntakeSource: models.IntakeAPI}

	findings := NewValidationEngine().Validate(p, testNow)
	fields := make([]string, 0, len(findings))
	for _, f := range findings {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{
		"contact.email",
		"contact.phone",
		"npi",
		"credentials.stateLicenses",
		"contact.address",
		"demographics.dateOfBirth",
		"demographics.gender",
		"demographics.ssn",
	}, fields)
}

func TestValidationEngine_Idempotent(t *testing.T) {
	engine := NewValidationEngine()
	p := testutil.ValidProvider("p1", testNow)
	p.NPI = "12345"
	p.Contact.Address.IsValidated = false
	p.Demographics = models.Demographics{}

	first := engine.Validate(p, testNow)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Validate(p, testNow))
	}
}
