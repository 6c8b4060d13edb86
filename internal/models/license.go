package models

import "time"

// LicenseStatus is the stored status of a state license
type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseExpired   LicenseStatus = "expired"
	LicenseSuspended LicenseStatus = "suspended"
	LicensePending   LicenseStatus = "pending"
)

// IsValid reports whether the status is a known value
func (s LicenseStatus) IsValid() bool {
	switch s {
	case LicenseActive, LicenseExpired, LicenseSuspended, LicensePending:
		return true
	}
	return false
}

// StateLicense is a license to practice in one state
type StateLicense struct {
	ID             string        `bson:"id" json:"id"`
	State          string        `bson:"state" json:"state"`
	LicenseNumber  string        `bson:"license_number" json:"licenseNumber"`
	ExpirationDate time.Time     `bson:"expiration_date" json:"expirationDate"`
	Status         LicenseStatus `bson:"status" json:"status"`
}

// EffectiveStatus derives the status at now: a license past its expiration date is expired
// whatever was stored.
func (l StateLicense) EffectiveStatus(now time.Time) LicenseStatus {
	if !l.ExpirationDate.IsZero() && !l.ExpirationDate.After(now) {
		return LicenseExpired
	}
	return l.Status
}

// IsActiveAt reports an active license whose expiration lies after now
func (l StateLicense) IsActiveAt(now time.Time) bool {
	return l.EffectiveStatus(now) == LicenseActive && l.ExpirationDate.After(now)
}
