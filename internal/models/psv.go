package models

import (
	"fmt"
	"time"
)

// CheckType names one primary-source verification domain
type CheckType string

const (
	CheckLicenses    CheckType = "licenses"
	CheckDEANPI      CheckType = "deaNpi"
	CheckEducation   CheckType = "education"
	CheckMalpractice CheckType = "malpractice"
	CheckWorkHistory CheckType = "workHistory"
	CheckSanctions   CheckType = "sanctions"
)

// AllCheckTypes lists the six checks in their canonical order
var AllCheckTypes = []CheckType{
	CheckLicenses,
	CheckDEANPI,
	CheckEducation,
	CheckMalpractice,
	CheckWorkHistory,
	CheckSanctions,
}

// ParseCheckType validates a check name coming from the outside
func ParseCheckType(raw string) (CheckType, error) {
	for _, c := range AllCheckTypes {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCheckType, raw)
}

// CheckStatus is the state of a single verification record
type CheckStatus string

const (
	CheckNotStarted CheckStatus = "not-started"
	CheckPending    CheckStatus = "pending"
	CheckVerified   CheckStatus = "verified"
	CheckFailed     CheckStatus = "failed"
)

// IsValid reports whether the status is a known value
func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckNotStarted, CheckPending, CheckVerified, CheckFailed:
		return true
	}
	return false
}

// IsDefinitive reports whether the status is a final outcome of a check
func (s CheckStatus) IsDefinitive() bool {
	return s == CheckVerified || s == CheckFailed
}

// OverallPSVStatus is the aggregate of the six checks
type OverallPSVStatus string

const (
	PSVNotStarted  OverallPSVStatus = "not-started"
	PSVInProgress  OverallPSVStatus = "in-progress"
	PSVCompleted   OverallPSVStatus = "completed"
	PSVIssuesFound OverallPSVStatus = "issues-found"
)

// AllOverallPSVStatuses lists aggregate values in display order
var AllOverallPSVStatuses = []OverallPSVStatus{PSVNotStarted, PSVInProgress, PSVCompleted, PSVIssuesFound}

// VerificationStatus is one checkable fact about a provider
type VerificationStatus struct {
	Status      CheckStatus `bson:"status" json:"status"`
	LastChecked *time.Time  `bson:"last_checked,omitempty" json:"lastChecked,omitempty"`
	Source      string      `bson:"source,omitempty" json:"source,omitempty"`
	Notes       string      `bson:"notes,omitempty" json:"notes,omitempty"`
}

func (v VerificationStatus) clone() VerificationStatus {
	if v.LastChecked != nil {
		t := *v.LastChecked
		v.LastChecked = &t
	}
	return v
}

// PSVStatus holds the six verification records and their aggregate
type PSVStatus struct {
	Licenses      VerificationStatus `bson:"licenses" json:"licenses"`
	DEANPI        VerificationStatus `bson:"dea_npi" json:"deaNpi"`
	Education     VerificationStatus `bson:"education" json:"education"`
	Malpractice   VerificationStatus `bson:"malpractice" json:"malpractice"`
	WorkHistory   VerificationStatus `bson:"work_history" json:"workHistory"`
	Sanctions     VerificationStatus `bson:"sanctions" json:"sanctions"`
	OverallStatus OverallPSVStatus   `bson:"overall_status" json:"overallStatus"`
}

// NewPSVStatus returns six not-started records
func NewPSVStatus() PSVStatus {
	ns := VerificationStatus{Status: CheckNotStarted}
	return PSVStatus{
		Licenses:      ns,
		DEANPI:        ns,
		Education:     ns,
		Malpractice:   ns,
		WorkHistory:   ns,
		Sanctions:     ns,
		OverallStatus: PSVNotStarted,
	}
}

func (p *PSVStatus) field(check CheckType) *VerificationStatus {
	switch check {
	case CheckLicenses:
		return &p.Licenses
	case CheckDEANPI:
		return &p.DEANPI
	case CheckEducation:
		return &p.Education
	case CheckMalpractice:
		return &p.Malpractice
	case CheckWorkHistory:
		return &p.WorkHistory
	case CheckSanctions:
		return &p.Sanctions
	}
	return nil
}

// Get returns the record for a check
func (p PSVStatus) Get(check CheckType) (VerificationStatus, bool) {
	f := p.field(check)
	if f == nil {
		return VerificationStatus{}, false
	}
	return f.clone(), true
}

// Set replaces the record for a check. The aggregate is left to the caller.
func (p *PSVStatus) Set(check CheckType, v VerificationStatus) error {
	f := p.field(check)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrInvalidCheckType, check)
	}
	*f = v.clone()
	return nil
}

// Records returns the six records in canonical order
func (p PSVStatus) Records() []VerificationStatus {
	out := make([]VerificationStatus, 0, len(AllCheckTypes))
	for _, c := range AllCheckTypes {
		out = append(out, p.field(c).clone())
	}
	return out
}

// Count returns how many records have the given status
func (p PSVStatus) Count(status CheckStatus) int {
	n := 0
	for _, c := range AllCheckTypes {
		if p.field(c).Status == status {
			n++
		}
	}
	return n
}

func (p PSVStatus) clone() PSVStatus {
	for _, c := range AllCheckTypes {
		f := p.field(c)
		*f = f.clone()
	}
	return p
}
