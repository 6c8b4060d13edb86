package services

import (
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
)

// ComputeDashboardStats counts providers per lifecycle status, PSV aggregate and intake source
func ComputeDashboardStats(providers []*models.Provider, now time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		ByPSVStatus:    make(map[models.OverallPSVStatus]int, len(models.AllOverallPSVStatuses)),
		ByIntakeSource: make(map[models.IntakeSource]int, 3),
		GeneratedAt:    now,
	}
	for _, s := range models.AllOverallPSVStatuses {
		stats.ByPSVStatus[s] = 0
	}

	for _, p := range providers {
		stats.Total++
		stats.ByPSVStatus[p.PSVStatus.OverallStatus]++
		stats.ByIntakeSource[p.IntakeSource]++

		switch p.Status {
		case models.StatusNew:
			stats.New++
		case models.StatusValidationInProgress:
			stats.ValidationInProgress++
		case models.StatusValidationFailed:
			stats.ValidationFailed++
		case models.StatusSubmitted:
			stats.Submitted++
		case models.StatusPSVInProgress:
			stats.PSVInProgress++
		case models.StatusPSVFailed:
			stats.PSVFailed++
		case models.StatusCommitteePending:
			stats.CommitteePending++
		case models.StatusCredentialed:
			stats.Credentialed++
		case models.StatusRejected:
			stats.Rejected++
		}
	}
	return stats
}

// ComputePSVReport summarizes verification progress per provider
func ComputePSVReport(providers []*models.Provider, now time.Time) models.PSVReport {
	report := models.PSVReport{
		Entries:     make([]models.PSVReportEntry, 0, len(providers)),
		GeneratedAt: now,
	}

	totalCompletion := 0
	for _, p := range providers {
		entry := models.PSVReportEntry{
			ProviderID:           p.ID,
			ProviderName:         p.DisplayName(),
			NPI:                  p.EffectiveNPI(),
			Status:               p.Status,
			OverallStatus:        p.PSVStatus.OverallStatus,
			CompletionPercentage: CompletionPercentage(p.PSVStatus),
			IssuesCount:          p.PSVStatus.Count(models.CheckFailed),
			Checks:               make(map[models.CheckType]models.VerificationStatus, len(models.AllCheckTypes)),
			LastUpdated:          p.UpdatedAt,
		}
		if primary, ok := p.PrimarySpecialty(); ok {
			entry.PrimarySpecialty = primary.Description
		}
		for _, c := range models.AllCheckTypes {
			entry.Checks[c], _ = p.PSVStatus.Get(c)
		}

		switch entry.OverallStatus {
		case models.PSVCompleted:
			report.CompletedCount++
		case models.PSVIssuesFound:
			report.IssuesFoundCount++
		}
		totalCompletion += entry.CompletionPercentage
		report.Entries = append(report.Entries, entry)
	}

	report.TotalProviders = len(report.Entries)
	if report.TotalProviders > 0 {
		report.AverageCompletionRate = totalCompletion / report.TotalProviders
	}
	return report
}
