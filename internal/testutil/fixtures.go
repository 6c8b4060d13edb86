package testutil

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
)

// ValidProvider returns a provider that passes every validation check at now.
// It is at New with all verification records not-started.
func ValidProvider(id string, now time.Time) *models.Provider {
	return &models.Provider{
		ID:        id,
		Name:      "Dr. John Smith",
		FirstName: "John",
		LastName:  "Smith",
		NPI:       "1234567890",
		TIN:       "12-3456789",
		Contact: models.ContactInfo{
			Email: "john.smith@email.com",
			Phone: "(617) 555-0142",
			Address: models.Address{
				Street:      "123 Medical Center Dr",
				City:        "Boston",
				State:       "MA",
				ZipCode:     "02118",
				IsValidated: true,
			},
		},
		Demographics: models.Demographics{
			DateOfBirth: "1975-06-15",
			Gender:      models.GenderMale,
			SSN:         "123-45-6789",
		},
		Credentials: models.Credentials{
			NPI:       "1234567890",
			TIN:       "12-3456789",
			DEANumber: "BS1234563",
			StateLicenses: []models.StateLicense{
				{
					ID:             "lic-1",
					State:          "MA",
					LicenseNumber:  "MD12345",
					ExpirationDate: now.AddDate(2, 0, 0),
					Status:         models.LicenseActive,
				},
			},
			Specialties: []models.Specialty{
				{TaxonomyCode: "207Q00000X", Description: "Family Medicine", IsPrimary: true},
			},
		},
		IntakeSource:     models.IntakeManual,
		Status:           models.StatusNew,
		ValidationErrors: []models.ValidationError{},
		PSVStatus:        models.NewPSVStatus(),
		DecisionLog:      []models.DecisionRecord{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ProviderAt returns a valid provider already placed in the given status with a
// PSV aggregate consistent with it.
func ProviderAt(id string, status models.ProviderStatus, now time.Time) *models.Provider {
	p := ValidProvider(id, now)
	p.Status = status
	checked := now

	set := func(s models.CheckStatus) {
		for _, c := range models.AllCheckTypes {
			_ = p.PSVStatus.Set(c, models.VerificationStatus{Status: s, LastChecked: &checked, Source: "test"})
		}
	}

	switch status {
	case models.StatusPSVInProgress:
		set(models.CheckPending)
		p.PSVStatus.OverallStatus = models.PSVInProgress
	case models.StatusPSVFailed:
		set(models.CheckVerified)
		_ = p.PSVStatus.Set(models.CheckSanctions, models.VerificationStatus{Status: models.CheckFailed, LastChecked: &checked, Source: "OIG"})
		p.PSVStatus.OverallStatus = models.PSVIssuesFound
	case models.StatusCommitteePending, models.StatusCredentialed, models.StatusRejected:
		set(models.CheckVerified)
		p.PSVStatus.OverallStatus = models.PSVCompleted
	}
	return p
}

// BearerToken builds an unsigned JWT carrying the given claims. Signature validation
// happens upstream of the service, so tests only need a decodable payload.
func BearerToken(claims models.JWTClaims) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body, _ := json.Marshal(claims)
	payload := base64.RawURLEncoding.EncodeToString(body)
	return "Bearer " + header + "." + payload + ".sig"
}

// ReviewerClaims returns claims for a committee reviewer
func ReviewerClaims(username, role string) models.JWTClaims {
	claims := models.JWTClaims{PreferredUsername: username, SUB: username}
	claims.RealmAccess.Roles = []string{role}
	return claims
}
