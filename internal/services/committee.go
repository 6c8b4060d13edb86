package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/models"
)

// CommitteeDecision is a reviewer's ruling on one provider
type CommitteeDecision struct {
	ProviderID string
	Decision   models.Decision
	Comments   string
	Reviewer   string
}

// ValidateDecision checks the input of a decision independently of provider state
func ValidateDecision(d CommitteeDecision) error {
	if !d.Decision.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidDecision, d.Decision)
	}
	if d.Decision.RequiresComments() && strings.TrimSpace(d.Comments) == "" {
		return fmt.Errorf("%w: %s", models.ErrCommentsRequired, d.Decision)
	}
	if strings.TrimSpace(d.Reviewer) == "" {
		return models.ErrReviewerRequired
	}
	return nil
}

// ApplyDecision records the decision in p's log and moves p to the resulting status.
// p is left untouched when any check fails.
func ApplyDecision(p *models.Provider, d CommitteeDecision, now time.Time, recordID string) (models.DecisionRecord, error) {
	if err := ValidateDecision(d); err != nil {
		return models.DecisionRecord{}, err
	}

	next, err := Transition(p.Status, d.Decision.Event())
	if err != nil {
		return models.DecisionRecord{}, err
	}

	record := models.DecisionRecord{
		ID:        recordID,
		Decision:  d.Decision,
		Comments:  strings.TrimSpace(d.Comments),
		Reviewer:  strings.TrimSpace(d.Reviewer),
		DecidedAt: now,
	}
	p.DecisionLog = append(p.DecisionLog, record)
	p.Status = next
	return record, nil
}
