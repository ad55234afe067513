package types

import (
	"time"

	"github.com/google/uuid"
)

// NewActionID generates a UUIDv7 action identifier.
// Time-ordered IDs keep audit rows clustered by evaluation time.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewActionID() ActionID {
	return ActionID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleID generates a UUIDv7 rule identifier for rules authored without one.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseActionID validates and converts a string to ActionID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the audit trail.
func ParseActionID(s string) (ActionID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ActionID(s), nil
}

// ActionIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid or non-v7 UUIDs; caller should check IsZero().
func ActionIDTime(id ActionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil || u.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
