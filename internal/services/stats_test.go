package services

import (
	"testing"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDashboardStats(t *testing.T) {
	providers := []*models.Provider{
		testutil.ProviderAt("a", models.StatusNew, testNow),
		testutil.ProviderAt("b", models.StatusValidationFailed, testNow),
		testutil.ProviderAt("c", models.StatusPSVInProgress, testNow),
		testutil.ProviderAt("d", models.StatusPSVFailed, testNow),
		testutil.ProviderAt("e", models.StatusCommitteePending, testNow),
		testutil.ProviderAt("f", models.StatusCredentialed, testNow),
		testutil.ProviderAt("g", models.StatusCredentialed, testNow),
	}
	providers[1].IntakeSource = models.IntakeFileUpload

	stats := ComputeDashboardStats(providers, testNow)

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 1, stats.ValidationFailed)
	assert.Equal(t, 1, stats.PSVInProgress)
	assert.Equal(t, 1, stats.PSVFailed)
	assert.Equal(t, 1, stats.CommitteePending)
	assert.Equal(t, 2, stats.Credentialed)
	assert.Zero(t, stats.Rejected)
	assert.Equal(t, 2, stats.CountFor(models.StatusCredentialed))

	assert.Equal(t, map[models.OverallPSVStatus]int{
		models.PSVNotStarted:  2,
		models.PSVInProgress:  1,
		models.PSVCompleted:   3,
		models.PSVIssuesFound: 1,
	}, stats.ByPSVStatus)
	assert.Equal(t, 6, stats.ByIntakeSource[models.IntakeManual])
	assert.Equal(t, 1, stats.ByIntakeSource[models.IntakeFileUpload])
	assert.Equal(t, testNow, stats.GeneratedAt)

	sum := 0
	for _, s := range models.AllProviderStatuses {
		sum += stats.CountFor(s)
	}
	assert.Equal(t, stats.Total, sum)
}

func TestComputeDashboardStats_Empty(t *testing.T) {
	stats := ComputeDashboardStats(nil, testNow)
	assert.Zero(t, stats.Total)
	assert.Len(t, stats.ByPSVStatus, 4)
}

func TestComputePSVReport(t *testing.T) {
	half := testutil.ProviderAt("half", models.StatusPSVInProgress, testNow)
	for _, c := range []models.CheckType{models.CheckLicenses, models.CheckDEANPI, models.CheckEducation} {
		require.NoError(t, ApplyVerification(&half.PSVStatus, c, models.VerificationStatus{Status: models.CheckVerified}))
	}

	providers := []*models.Provider{
		testutil.ProviderAt("new", models.StatusNew, testNow),
		half,
		testutil.ProviderAt("failed", models.StatusPSVFailed, testNow),
		testutil.ProviderAt("done", models.StatusCommitteePending, testNow),
	}

	report := ComputePSVReport(providers, testNow)
	require.Len(t, report.Entries, 4)
	assert.Equal(t, 4, report.TotalProviders)
	assert.Equal(t, 1, report.CompletedCount)
	assert.Equal(t, 1, report.IssuesFoundCount)

	byID := map[string]models.PSVReportEntry{}
	for _, e := range report.Entries {
		byID[e.ProviderID] = e
	}
	assert.Equal(t, 0, byID["new"].CompletionPercentage)
	assert.Equal(t, 50, byID["half"].CompletionPercentage)
	assert.Equal(t, 83, byID["failed"].CompletionPercentage)
	assert.Equal(t, 1, byID["failed"].IssuesCount)
	assert.Equal(t, 100, byID["done"].CompletionPercentage)
	assert.Equal(t, "Family Medicine", byID["done"].PrimarySpecialty)
	assert.Equal(t, "1234567890", byID["done"].NPI)
	assert.Len(t, byID["done"].Checks, 6)

	// (0 + 50 + 83 + 100) / 4
	assert.Equal(t, 58, report.AverageCompletionRate)
}
