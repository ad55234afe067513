package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/overseer/internal/types"
)

// AuditStore writes one row per decision to evaluation_events.
type AuditStore struct {
	q *Queries
}

// NewAuditStore creates an audit store over q.
func NewAuditStore(q *Queries) *AuditStore {
	return &AuditStore{q: q}
}

// Record persists ev.
func (s *AuditStore) Record(ctx context.Context, ev types.AuditEvent) error {
	matched, err := jsonText(nonNil(ev.MatchedRules))
	if err != nil {
		return err
	}
	violations, err := jsonText(nonNil(ev.Violations))
	if err != nil {
		return err
	}
	warnings, err := jsonText(nonNil(ev.Warnings))
	if err != nil {
		return err
	}

	_, err = s.q.Exec(ctx, "insert-evaluation-event",
		string(ev.ActionID), ev.AgentID, ev.Action.Type, ev.Action.Tool, ev.Action.Target,
		string(ev.Status), ev.RiskScore, string(ev.RiskLevel), ev.Allowed,
		matched, violations, warnings,
		ev.EvaluatedAt.UTC(), ev.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record evaluation %s: %w", ev.ActionID, err)
	}
	return nil
}

// EventSummary is a row of the recent-decisions listing.
type EventSummary struct {
	ActionID    string    `db:"action_id"`
	AgentID     string    `db:"agent_id"`
	ActionType  string    `db:"action_type"`
	Status      string    `db:"status"`
	RiskScore   float64   `db:"risk_score"`
	RiskLevel   string    `db:"risk_level"`
	Allowed     bool      `db:"allowed"`
	EvaluatedAt time.Time `db:"evaluated_at"`
}

// Recent returns the newest limit decisions, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]EventSummary, error) {
	var out []EventSummary
	if err := s.q.Select(ctx, "list-recent-evaluation-events", &out, limit); err != nil {
		return nil, fmt.Errorf("list evaluation events: %w", err)
	}
	return out, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode audit field: %w", err)
	}
	return string(b), nil
}

// nonNil keeps empty lists as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
