package services

import (
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
)

// AggregatePSV folds verification records into the overall PSV status.
// Rules apply in order and the first match wins.
func AggregatePSV(records []models.VerificationStatus) models.OverallPSVStatus {
	if len(records) == 0 {
		return models.PSVNotStarted
	}

	verified, notStarted := 0, 0
	for _, r := range records {
		switch r.Status {
		case models.CheckFailed:
			return models.PSVIssuesFound
		case models.CheckVerified:
			verified++
		case models.CheckNotStarted:
			notStarted++
		}
	}

	switch {
	case verified == len(records):
		return models.PSVCompleted
	case notStarted == len(records):
		return models.PSVNotStarted
	}
	return models.PSVInProgress
}

// RecomputePSV refreshes the aggregate of a PSV status from its six records
func RecomputePSV(psv *models.PSVStatus) {
	psv.OverallStatus = AggregatePSV(psv.Records())
}

// ApplyVerification writes one record and recomputes the aggregate
func ApplyVerification(psv *models.PSVStatus, check models.CheckType, record models.VerificationStatus) error {
	if err := psv.Set(check, record); err != nil {
		return err
	}
	RecomputePSV(psv)
	return nil
}

// CompletionPercentage is the share of the six checks with status verified
func CompletionPercentage(psv models.PSVStatus) int {
	return psv.Count(models.CheckVerified) * 100 / len(models.AllCheckTypes)
}

// StaleChecks lists the checks of psv that should be dispatched again at now:
// pending records last touched before now-staleAfter and records never started
func StaleChecks(psv models.PSVStatus, now time.Time, staleAfter time.Duration) []models.CheckType {
	var out []models.CheckType
	cutoff := now.Add(-staleAfter)
	for _, c := range models.AllCheckTypes {
		rec, _ := psv.Get(c)
		switch rec.Status {
		case models.CheckNotStarted:
			out = append(out, c)
		case models.CheckPending:
			if rec.LastChecked == nil || rec.LastChecked.Before(cutoff) {
				out = append(out, c)
			}
		}
	}
	return out
}
