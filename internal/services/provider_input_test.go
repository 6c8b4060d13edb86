package services

import (
	"testing"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFromInput(t *testing.T) {
	in := validInput()
	in.Name = "  "
	in.FirstName = "  Sarah "
	in.Credentials.StateLicenses[0].State = "ma"

	p, err := ProviderFromInput(in, models.IntakeManual, "p1", testNow)
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, models.StatusNew, p.Status)
	assert.Equal(t, models.IntakeManual, p.IntakeSource)
	assert.Equal(t, "Sarah Johnson", p.Name)
	assert.Equal(t, "Sarah", p.FirstName)
	assert.Equal(t, models.NewPSVStatus(), p.PSVStatus)
	assert.Empty(t, p.ValidationErrors)
	assert.NotNil(t, p.DecisionLog)
	assert.Equal(t, testNow, p.CreatedAt)

	require.Len(t, p.Credentials.StateLicenses, 1)
	lic := p.Credentials.StateLicenses[0]
	assert.Equal(t, "MA", lic.State)
	assert.True(t, utils.IsUUID(lic.ID))
	assert.Equal(t, time.Date(2028, 12, 31, 0, 0, 0, 0, time.UTC), lic.ExpirationDate)
	assert.Equal(t, models.LicenseActive, lic.Status)
}

func TestProviderFromInput_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *models.ProviderInput)
		source  models.IntakeSource
		wantErr error
	}{
		{name: "unknown source", source: "email", wantErr: models.ErrInvalidIntakeSource},
		{
			name:    "source mismatch",
			mutate:  func(in *models.ProviderInput) { in.IntakeSource = models.IntakeAPI },
			source:  models.IntakeManual,
			wantErr: models.ErrInvalidIntakeSource,
		},
		{
			name: "two primaries",
			mutate: func(in *models.ProviderInput) {
				in.Credentials.Specialties = append(in.Credentials.Specialties, models.Specialty{TaxonomyCode: "207R00000X", IsPrimary: true})
			},
			source:  models.IntakeManual,
			wantErr: models.ErrMultiplePrimarySpecialties,
		},
		{
			name:    "bad expiration",
			mutate:  func(in *models.ProviderInput) { in.Credentials.StateLicenses[0].ExpirationDate = "next year" },
			source:  models.IntakeManual,
			wantErr: models.ErrInvalidInput,
		},
		{
			name:    "bad license status",
			mutate:  func(in *models.ProviderInput) { in.Credentials.StateLicenses[0].Status = "revoked" },
			source:  models.IntakeManual,
			wantErr: models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := ProviderFromInput(in, tt.source, "p1", testNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyInputKeepsLifecycleState(t *testing.T) {
	p, err := ProviderFromInput(validInput(), models.IntakeManual, "p1", testNow)
	require.NoError(t, err)
	p.Status = models.StatusValidationFailed
	p.DecisionLog = []models.DecisionRecord{{ID: "d1"}}
	p.Version = 4

	in := validInput()
	in.Name = "Dr. Sarah Johnson"
	in.Contact.Phone = "not a phone"
	require.NoError(t, applyInput(p, in))

	assert.Equal(t, "Dr. Sarah Johnson", p.Name)
	assert.Equal(t, "not a phone", p.Contact.Phone)
	assert.Equal(t, models.StatusValidationFailed, p.Status)
	assert.Len(t, p.DecisionLog, 1)
	assert.Equal(t, int32(4), p.Version)
	assert.Equal(t, "p1", p.ID)
}
