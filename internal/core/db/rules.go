package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/overseer/internal/types"
)

// RuleRepository persists rules registered through the API so they survive
// restarts and rule-file reloads. The full rule is stored as a JSON
// document; the scalar columns exist for operators querying the table.
type RuleRepository struct {
	q *Queries
}

// NewRuleRepository creates a repository over q.
func NewRuleRepository(q *Queries) *RuleRepository {
	return &RuleRepository{q: q}
}

// Save inserts or replaces r.
func (r *RuleRepository) Save(ctx context.Context, rule types.Rule) error {
	if rule.ID == "" {
		return types.ErrEmptyRuleID
	}
	body, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", rule.ID, err)
	}

	now := time.Now().UTC()
	_, err = r.q.Exec(ctx, "upsert-rule",
		string(rule.ID), rule.Name, string(rule.Category), rule.Enabled, rule.Priority,
		string(body), now, now,
	)
	if err != nil {
		return fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return nil
}

// Delete removes the rule. Deleting an absent rule is not an error.
func (r *RuleRepository) Delete(ctx context.Context, id types.RuleID) error {
	if _, err := r.q.Exec(ctx, "delete-rule", string(id)); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

type ruleRow struct {
	ID         string `db:"rule_id"`
	Definition string `db:"definition"`
}

// List returns stored rules in creation order.
func (r *RuleRepository) List(ctx context.Context) ([]types.Rule, error) {
	var rows []ruleRow
	if err := r.q.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	out := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		var rule types.Rule
		if err := json.Unmarshal([]byte(row.Definition), &rule); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", row.ID, err)
		}
		out = append(out, rule)
	}
	return out, nil
}
