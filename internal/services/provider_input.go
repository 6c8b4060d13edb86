package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
)

// ProviderFromInput builds a provider at New from submitted details
func ProviderFromInput(input models.ProviderInput, source models.IntakeSource, id string, now time.Time) (*models.Provider, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidIntakeSource, source)
	}
	if input.IntakeSource != "" && input.IntakeSource != source {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidIntakeSource, input.IntakeSource)
	}

	p := &models.Provider{
		ID:               id,
		IntakeSource:     source,
		Status:           models.StatusNew,
		ValidationErrors: []models.ValidationError{},
		PSVStatus:        models.NewPSVStatus(),
		DecisionLog:      []models.DecisionRecord{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := applyInput(p, input); err != nil {
		return nil, err
	}
	return p, nil
}

// applyInput overwrites the editable details of p. Identity, status, PSV records and
// the decision log are left alone.
func applyInput(p *models.Provider, input models.ProviderInput) error {
	specialties := make([]models.Specialty, 0, len(input.Credentials.Specialties))
	primaries := 0
	for _, s := range input.Credentials.Specialties {
		if s.IsPrimary {
			primaries++
		}
		specialties = append(specialties, models.Specialty{
			TaxonomyCode: strings.TrimSpace(s.TaxonomyCode),
			Description:  strings.TrimSpace(s.Description),
			IsPrimary:    s.IsPrimary,
		})
	}
	if primaries > 1 {
		return models.ErrMultiplePrimarySpecialties
	}

	licenses := make([]models.StateLicense, 0, len(input.Credentials.StateLicenses))
	for i, l := range input.Credentials.StateLicenses {
		expires, err := time.Parse(models.DateLayout, strings.TrimSpace(l.ExpirationDate))
		if err != nil {
			return fmt.Errorf("%w: credentials.stateLicenses[%d].expirationDate must be YYYY-MM-DD", models.ErrInvalidInput, i)
		}
		status := l.Status
		if !status.IsValid() {
			return fmt.Errorf("%w: credentials.stateLicenses[%d].status %q", models.ErrInvalidInput, i, l.Status)
		}
		licenses = append(licenses, models.StateLicense{
			ID:             utils.GenerateUUID(),
			State:          strings.ToUpper(strings.TrimSpace(l.State)),
			LicenseNumber:  strings.TrimSpace(l.LicenseNumber),
			ExpirationDate: expires,
			Status:         status,
		})
	}

	first := strings.TrimSpace(input.FirstName)
	last := strings.TrimSpace(input.LastName)
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.TrimSpace(first + " " + last)
	}

	p.Name = name
	p.FirstName = first
	p.LastName = last
	p.NPI = strings.TrimSpace(input.NPI)
	p.TIN = strings.TrimSpace(input.TIN)
	p.Contact = models.ContactInfo{
		Email: strings.TrimSpace(input.Contact.Email),
		Phone: utils.NormalizePhone(input.Contact.Phone),
		Address: models.Address{
			Street:      strings.TrimSpace(input.Contact.Address.Street),
			City:        strings.TrimSpace(input.Contact.Address.City),
			State:       strings.ToUpper(strings.TrimSpace(input.Contact.Address.State)),
			ZipCode:     strings.TrimSpace(input.Contact.Address.ZipCode),
			IsValidated: input.Contact.Address.IsValidated,
		},
	}
	p.Demographics = models.Demographics{
		DateOfBirth: strings.TrimSpace(input.Demographics.DateOfBirth),
		Gender:      strings.TrimSpace(input.Demographics.Gender),
		SSN:         strings.TrimSpace(input.Demographics.SSN),
	}
	p.Credentials = models.Credentials{
		NPI:           strings.TrimSpace(input.Credentials.NPI),
		TIN:           strings.TrimSpace(input.Credentials.TIN),
		DEANumber:     strings.TrimSpace(input.Credentials.DEANumber),
		StateLicenses: licenses,
		Specialties:   specialties,
	}
	return nil
}
