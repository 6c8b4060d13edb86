package services

import (
	"testing"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDecision(t *testing.T) {
	tests := []struct {
		name    string
		d       CommitteeDecision
		wantErr error
	}{
		{"approve without comments", CommitteeDecision{Decision: models.DecisionApprove, Reviewer: "dr.jones"}, nil},
		{"reject with comments", CommitteeDecision{Decision: models.DecisionReject, Comments: "sanctions hit", Reviewer: "dr.jones"}, nil},
		{"reject without comments", CommitteeDecision{Decision: models.DecisionReject, Comments: "  ", Reviewer: "dr.jones"}, models.ErrCommentsRequired},
		{"request info without comments", CommitteeDecision{Decision: models.DecisionRequestInfo, Reviewer: "dr.jones"}, models.ErrCommentsRequired},
		{"unknown decision", CommitteeDecision{Decision: "defer", Reviewer: "dr.jones"}, models.ErrInvalidDecision},
		{"missing reviewer", CommitteeDecision{Decision: models.DecisionApprove}, models.ErrReviewerRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecision(tt.d)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyDecision(t *testing.T) {
	tests := []struct {
		name     string
		decision models.Decision
		comments string
		want     models.ProviderStatus
	}{
		{"approve", models.DecisionApprove, "", models.StatusCredentialed},
		{"reject", models.DecisionReject, "incomplete work history", models.StatusRejected},
		{"request info", models.DecisionRequestInfo, "need malpractice details", models.StatusCommitteePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.ProviderAt("p1", models.StatusCommitteePending, testNow)

			record, err := ApplyDecision(p, CommitteeDecision{
				ProviderID: "p1",
				Decision:   tt.decision,
				Comments:   tt.comments,
				Reviewer:   "dr.jones",
			}, testNow, "d1")
			require.NoError(t, err)

			assert.Equal(t, tt.want, p.Status)
			require.Len(t, p.DecisionLog, 1)
			assert.Equal(t, record, p.DecisionLog[0])
			assert.Equal(t, "d1", record.ID)
			assert.Equal(t, tt.decision, record.Decision)
			assert.Equal(t, tt.comments, record.Comments)
			assert.Equal(t, "dr.jones", record.Reviewer)
			assert.Equal(t, testNow, record.DecidedAt)
		})
	}
}

func TestApplyDecision_RequestInfoAppendsEachTime(t *testing.T) {
	p := testutil.ProviderAt("p1", models.StatusCommitteePending, testNow)
	d := CommitteeDecision{ProviderID: "p1", Decision: models.DecisionRequestInfo, Comments: "more info", Reviewer: "dr.jones"}

	_, err := ApplyDecision(p, d, testNow, "d1")
	require.NoError(t, err)
	_, err = ApplyDecision(p, d, testNow, "d2")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCommitteePending, p.Status)
	assert.Len(t, p.DecisionLog, 2)
}

func TestApplyDecision_WrongStateLeavesProviderUnchanged(t *testing.T) {
	for _, status := range []models.ProviderStatus{models.StatusNew, models.StatusPSVInProgress, models.StatusCredentialed, models.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			p := testutil.ProviderAt("p1", status, testNow)
			before := p.Clone()

			_, err := ApplyDecision(p, CommitteeDecision{Decision: models.DecisionApprove, Reviewer: "dr.jones"}, testNow, "d1")
			assert.True(t, models.IsInvalidTransition(err))
			assert.Equal(t, before, p)
		})
	}
}

func TestApplyDecision_InputErrorBeforeState(t *testing.T) {
	p := testutil.ProviderAt("p1", models.StatusCommitteePending, testNow)

	_, err := ApplyDecision(p, CommitteeDecision{Decision: models.DecisionReject, Reviewer: "dr.jones"}, testNow, "d1")
	assert.ErrorIs(t, err, models.ErrCommentsRequired)
	assert.Empty(t, p.DecisionLog)
	assert.Equal(t, models.StatusCommitteePending, p.Status)
}
