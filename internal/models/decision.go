package models

import "time"

// Decision is a committee outcome
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionRequestInfo Decision = "request-info"
)

// IsValid reports whether d is a known decision
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionRequestInfo:
		return true
	}
	return false
}

// RequiresComments reports whether the decision must carry reviewer comments
func (d Decision) RequiresComments() bool {
	return d == DecisionReject || d == DecisionRequestInfo
}

// Event maps the decision to its lifecycle event
func (d Decision) Event() LifecycleEvent {
	return LifecycleEvent(d)
}

// DecisionRecord is one entry of a provider's append-only committee log
type DecisionRecord struct {
	ID        string    `bson:"id" json:"id"`
	Decision  Decision  `bson:"decision" json:"decision"`
	Comments  string    `bson:"comments,omitempty" json:"comments,omitempty"`
	Reviewer  string    `bson:"reviewer" json:"reviewer"`
	DecidedAt time.Time `bson:"decided_at" json:"decidedAt"`
}

// CommitteeDecisionRequest is the body of a committee decision submission
type CommitteeDecisionRequest struct {
	Decision Decision `json:"decision" binding:"required" example:"approve"`
	Comments string   `json:"comments" example:"All verifications satisfactory"`
}
