package types

import "time"

// AuditEvent is the persisted record of one decision.
type AuditEvent struct {
	ActionID     ActionID
	AgentID      string
	Action       ProposedAction
	Status       Status
	RiskScore    float64
	RiskLevel    RiskLevel
	Allowed      bool
	MatchedRules []RuleID
	Violations   []Violation
	Warnings     []string
	EvaluatedAt  time.Time
	Duration     time.Duration
}

// NewAuditEvent builds the audit record for res.
func NewAuditEvent(agentID string, action ProposedAction, res *EvaluationResult) AuditEvent {
	return AuditEvent{
		ActionID:     res.ActionID,
		AgentID:      agentID,
		Action:       action,
		Status:       res.Status,
		RiskScore:    res.RiskScore,
		RiskLevel:    res.RiskLevel,
		Allowed:      res.Allowed,
		MatchedRules: res.MatchedRules,
		Violations:   res.Violations,
		Warnings:     res.Warnings,
		EvaluatedAt:  res.EvaluatedAt,
		Duration:     res.Duration,
	}
}

// ApprovalRequest asks a human to approve an action.
type ApprovalRequest struct {
	ActionID  ActionID
	AgentID   string
	Action    ProposedAction
	Reason    string
	RiskScore float64
	RiskLevel RiskLevel
}
