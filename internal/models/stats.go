package models

import "time"

// DashboardStats is a read-only projection over the provider store
type DashboardStats struct {
	New                  int `json:"new"`
	ValidationInProgress int `json:"validationInProgress"`
	ValidationFailed     int `json:"validationFailed"`
	Submitted            int `json:"submitted"`
	PSVInProgress        int `json:"psvInProgress"`
	PSVFailed            int `json:"psvFailed"`
	CommitteePending     int `json:"committeePending"`
	Credentialed         int `json:"credentialed"`
	Rejected             int `json:"rejected"`
	Total                int `json:"total"`

	ByPSVStatus    map[OverallPSVStatus]int `json:"byPsvStatus"`
	ByIntakeSource map[IntakeSource]int     `json:"byIntakeSource"`
	GeneratedAt    time.Time                `json:"generatedAt"`
}

// CountFor returns the count for a lifecycle status
func (s DashboardStats) CountFor(status ProviderStatus) int {
	switch status {
	case StatusNew:
		return s.New
	case StatusValidationInProgress:
		return s.ValidationInProgress
	case StatusValidationFailed:
		return s.ValidationFailed
	case StatusSubmitted:
		return s.Submitted
	case StatusPSVInProgress:
		return s.PSVInProgress
	case StatusPSVFailed:
		return s.PSVFailed
	case StatusCommitteePending:
		return s.CommitteePending
	case StatusCredentialed:
		return s.Credentialed
	case StatusRejected:
		return s.Rejected
	}
	return 0
}

// PSVReportEntry summarizes the verification progress of one provider
type PSVReportEntry struct {
	ProviderID           string                           `json:"providerId"`
	ProviderName         string                           `json:"providerName"`
	NPI                  string                           `json:"npi,omitempty"`
	PrimarySpecialty     string                           `json:"primarySpecialty,omitempty"`
	Status               ProviderStatus                   `json:"status"`
	OverallStatus        OverallPSVStatus                 `json:"overallStatus"`
	CompletionPercentage int                              `json:"completionPercentage"`
	IssuesCount          int                              `json:"issuesCount"`
	Checks               map[CheckType]VerificationStatus `json:"checks"`
	LastUpdated          time.Time                        `json:"lastUpdated"`
}

// PSVReport is the report over a set of providers
type PSVReport struct {
	Entries               []PSVReportEntry `json:"entries"`
	TotalProviders        int              `json:"totalProviders"`
	CompletedCount        int              `json:"completedCount"`
	IssuesFoundCount      int              `json:"issuesFoundCount"`
	AverageCompletionRate int              `json:"averageCompletionRate"`
	GeneratedAt           time.Time        `json:"generatedAt"`
}
