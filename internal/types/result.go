package types

import "time"

// Status is the final outcome of one evaluation.
type Status string

const (
	StatusApproved        Status = "approved"
	StatusDenied          Status = "denied"
	StatusPendingApproval Status = "pending_approval"
	StatusRequiresReview  Status = "requires_review"
	StatusRateLimited     Status = "rate_limited"
)

// RiskLevel is the discrete bucket of a risk score or weight.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Risk level thresholds, inclusive at the lower bound.
const (
	ThresholdLow      = 20.0
	ThresholdMedium   = 40.0
	ThresholdHigh     = 60.0
	ThresholdCritical = 80.0
)

// RiskLevelFor maps a score (or a rule's risk weight) to its level.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskCritical
	case score >= ThresholdHigh:
		return RiskHigh
	case score >= ThresholdMedium:
		return RiskMedium
	case score >= ThresholdLow:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// Violation records a deny produced by one rule.
type Violation struct {
	RuleID         RuleID    `json:"ruleId"`
	RuleName       string    `json:"ruleName"`
	Severity       RiskLevel `json:"severity"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// AppliedAction records one action applied during evaluation, including
// the ones with no effect on status (allow, log, notify, transform).
type AppliedAction struct {
	RuleID  RuleID     `json:"ruleId"`
	Type    ActionType `json:"type"`
	Message string     `json:"message,omitempty"`
}

// EvaluationResult is the decision for one proposed action.
// Produced fresh per call and owned by the caller.
type EvaluationResult struct {
	ActionID              ActionID        `json:"actionId"`
	Status                Status          `json:"status"`
	RiskScore             float64         `json:"riskScore"`
	RiskLevel             RiskLevel       `json:"riskLevel"`
	Allowed               bool            `json:"allowed"`
	Violations            []Violation     `json:"violations"`
	Warnings              []string        `json:"warnings"`
	MatchedRules          []RuleID        `json:"matchedRules"`
	AppliedActions        []AppliedAction `json:"appliedActions"`
	RequiresHumanApproval bool            `json:"requiresHumanApproval"`
	ApprovalReason        string          `json:"approvalReason,omitempty"`
	EvaluatedAt           time.Time       `json:"evaluatedAt"`
	Duration              time.Duration   `json:"duration"`
}
