package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Actor roles. Agents submit actions and classifications; reviewers are the
// human actors who may rule on escalated cases.
const (
	RoleAgent    = "agent"
	RoleReviewer = "reviewer"
)

// Key prefixes per role, used to narrow auth lookups before bcrypt verify.
const (
	AgentKeyPrefix    = "agk_"
	ReviewerKeyPrefix = "ark_"
)

// Actor represents a row in the actors table.
type Actor struct {
	ID           string
	Name         string
	Role         string
	APIKeyHash   string
	APIKeyPrefix string
	CreatedAt    time.Time
}

// Directory answers auth lookups. Satisfied by Store and MemoryDirectory.
type Directory interface {
	LookupByPrefix(ctx context.Context, prefix string) (*Actor, error)
}

// GenerateAPIKey creates a new API key for the role with its bcrypt hash and
// lookup prefix. Returns (fullKey, hash, prefix, error). The fullKey is
// shown to the operator once.
func GenerateAPIKey(role string) (string, string, string, error) {
	keyPrefix := AgentKeyPrefix
	if role == RoleReviewer {
		keyPrefix = ReviewerKeyPrefix
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := keyPrefix + hex.EncodeToString(raw)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8]
	return fullKey, string(hashBytes), prefix, nil
}

// CreateActor inserts a new actor and returns it with the plaintext API key
// (shown once).
func (s *Store) CreateActor(ctx context.Context, name, role string) (*Actor, string, error) {
	if role != RoleAgent && role != RoleReviewer {
		return nil, "", fmt.Errorf("CreateActor: invalid role %q", role)
	}

	fullKey, keyHash, keyPrefix, err := GenerateAPIKey(role)
	if err != nil {
		return nil, "", fmt.Errorf("CreateActor: %w", err)
	}

	var a Actor
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO actors (name, role, api_key_hash, api_key_prefix)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, role, api_key_hash, api_key_prefix, created_at`,
		name, role, keyHash, keyPrefix,
	).Scan(&a.ID, &a.Name, &a.Role, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateActor: %w", err)
	}

	return &a, fullKey, nil
}

// LookupByPrefix finds an actor by API key prefix (first 8 chars).
// Used by auth to narrow candidates before bcrypt verify.
func (s *Store) LookupByPrefix(ctx context.Context, prefix string) (*Actor, error) {
	var a Actor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, api_key_hash, api_key_prefix, created_at
		FROM actors WHERE api_key_prefix = $1`, prefix,
	).Scan(&a.ID, &a.Name, &a.Role, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	return &a, nil
}

// MemoryDirectory is an in-memory Directory for development mode and tests.
type MemoryDirectory struct {
	mu     sync.RWMutex
	actors map[string]*Actor // by key prefix
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{actors: make(map[string]*Actor)}
}

// Add registers an actor and returns its plaintext API key.
func (d *MemoryDirectory) Add(name, role string) (*Actor, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey(role)
	if err != nil {
		return nil, "", err
	}
	a := &Actor{
		ID:           name,
		Name:         name,
		Role:         role,
		APIKeyHash:   keyHash,
		APIKeyPrefix: keyPrefix,
		CreatedAt:    time.Now().UTC(),
	}
	d.mu.Lock()
	d.actors[keyPrefix] = a
	d.mu.Unlock()
	return a, fullKey, nil
}

func (d *MemoryDirectory) LookupByPrefix(_ context.Context, prefix string) (*Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.actors[prefix], nil
}
