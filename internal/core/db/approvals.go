package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/overseer/internal/types"
)

// ApprovalStore opens human-approval tickets in approval_requests.
type ApprovalStore struct {
	q   *Queries
	now func() time.Time
}

// NewApprovalStore creates an approval store over q.
func NewApprovalStore(q *Queries) *ApprovalStore {
	return &ApprovalStore{q: q, now: time.Now}
}

// RequestApproval opens a pending ticket and returns its id.
func (s *ApprovalStore) RequestApproval(ctx context.Context, req types.ApprovalRequest) (string, error) {
	action, err := jsonText(req.Action)
	if err != nil {
		return "", err
	}

	ticketID := uuid.Must(uuid.NewV7()).String()
	_, err = s.q.Exec(ctx, "insert-approval-request",
		ticketID, string(req.ActionID), req.AgentID, action, req.Reason,
		req.RiskScore, string(req.RiskLevel), s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("open approval ticket for %s: %w", req.ActionID, err)
	}
	return ticketID, nil
}

// PendingApproval is an open ticket.
type PendingApproval struct {
	TicketID  string    `db:"ticket_id"`
	ActionID  string    `db:"action_id"`
	AgentID   string    `db:"agent_id"`
	Reason    string    `db:"reason"`
	RiskScore float64   `db:"risk_score"`
	RiskLevel string    `db:"risk_level"`
	CreatedAt time.Time `db:"created_at"`
}

// Pending lists open tickets, oldest first.
func (s *ApprovalStore) Pending(ctx context.Context) ([]PendingApproval, error) {
	var out []PendingApproval
	if err := s.q.Select(ctx, "list-pending-approvals", &out); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return out, nil
}
