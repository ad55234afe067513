// Package auth authenticates agents calling the governance API with
// HMAC-protected API keys.
//
// Keys have the form ov-v1-<secret_id>-<random>. The server keeps only
// HMAC-SHA256(secret, key) in api_keys; secret_id selects which of the
// OV_HMAC_SECRET[_N] secrets produced the hash so secrets can rotate
// without invalidating issued keys.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const agentIDKey = contextKey("agent_id")

// lastUsedThrottle bounds last_used_at writes per key.
const lastUsedThrottle = time.Minute

// Queries is the subset of *db.Queries used for key storage.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys against stored HMAC hashes.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator over the given secrets
// (secret_id -> secret) and key storage.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

type keyRow struct {
	APIKeyID   string       `db:"api_key_id"`
	AgentID    string       `db:"agent_id"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
}

// Authenticate validates apiKey and returns the agent id it was issued to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var row keyRow
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if !row.LastUsedAt.Valid || a.now().Sub(row.LastUsedAt.Time) > lastUsedThrottle {
		// Best effort; a failed touch never blocks the request
		_, _ = a.queries.Exec(ctx, "update-last-used", a.now().UTC(), row.APIKeyID)
	}

	return row.AgentID, nil
}

// IssuedKey is a freshly created API key. Key is shown once and never stored.
type IssuedKey struct {
	ID      string
	AgentID string
	Key     string
}

// Issue creates a key for agentID signed with the secret secretID.
func (a *Authenticator) Issue(ctx context.Context, secretID, agentID string) (*IssuedKey, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return nil, ErrUnknownKey
	}

	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	key := FormatAPIKey(secretID, hex.EncodeToString(random))
	id := uuid.Must(uuid.NewV7()).String()

	if _, err := a.queries.Exec(ctx, "insert-api-key", id, agentID, ComputeHMAC(secret, key), a.now().UTC()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &IssuedKey{ID: id, AgentID: agentID, Key: key}, nil
}

// Revoke marks the key revoked. Revoking twice is not an error.
func (a *Authenticator) Revoke(ctx context.Context, apiKeyID string) error {
	if _, err := a.queries.Exec(ctx, "revoke-api-key", a.now().UTC(), apiKeyID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// UnaryInterceptor authenticates every unary call and stores the agent id
// in the handler's context.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		keys := md.Get("x-api-key")
		if len(keys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		agentID, err := a.Authenticate(ctx, keys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStorage):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithAgentID(ctx, agentID), req)
	}
}

// WithAgentID returns ctx carrying agentID.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

// AgentIDFromContext returns the authenticated agent id, or "" when the
// request was not authenticated.
func AgentIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(agentIDKey).(string); ok {
		return id
	}
	return ""
}
