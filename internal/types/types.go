// Package types provides domain models shared across overseer components.
//
// Zero-behaviour design: rules.go, result.go and errors.go describe data only.
// Evaluation lives in internal/rules, rule-set analysis in internal/depgraph.
// ID utilities in ids.go import uuid but are isolated from the rest.
//
// Separation from transport: the gRPC layer converts structpb messages to and
// from these types at the API boundary; nothing here knows about the wire.
package types

// RuleID identifies a rule. Caller-chosen and stable across reloads.
type RuleID string

// ActionID identifies one proposed agent action.
// Generated as UUIDv7 when the caller does not supply one.
type ActionID string

// Context is the evaluation context: an explicit key-value map that
// conditions address with dot-separated field paths.
type Context map[string]any

// Clone returns a shallow copy of c. Nested maps are shared.
func (c Context) Clone() Context {
	out := make(Context, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Resource limits enforced by validation to keep evaluation cost bounded.
const (
	// MaxPriority is the highest rule priority accepted.
	MaxPriority = 1000

	// MaxRiskWeight is the highest rule risk weight accepted.
	MaxRiskWeight = 100

	// MaxRiskScore caps the aggregate risk score.
	MaxRiskScore = 100.0

	// MaxPathDepth bounds the number of dot-separated segments in a field path.
	// 16 levels covers deeply nested tool parameters without unbounded walks.
	MaxPathDepth = 16

	// MaxInOperatorValues limits in/not_in lists.
	// 256 values supports allow-lists of hosts or tools without turning
	// validation into a bulk-data channel.
	MaxInOperatorValues = 256
)
