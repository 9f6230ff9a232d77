package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lifesync/lifesync/internal/model"
)

const apiKeyPrefix = "ls"

// APIKeyStore issues and verifies bearer API keys. Only a bcrypt hash of
// the secret part is stored; the prefix locates the row.
type APIKeyStore struct {
	db *sql.DB
}

func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create issues a new key for userID and returns the plaintext token. The
// token is shown once and cannot be recovered.
func (s *APIKeyStore) Create(ctx context.Context, userID int64) (string, *model.APIKey, error) {
	prefixBytes := make([]byte, 6)
	if _, err := rand.Read(prefixBytes); err != nil {
		return "", nil, fmt.Errorf("generate prefix: %w", err)
	}
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, fmt.Errorf("generate secret: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash secret: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, prefix, key_hash, created_at) VALUES (?, ?, ?, ?)`,
		userID, prefix, string(hash), now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert api key: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("last insert id: %w", err)
	}

	key := &model.APIKey{ID: id, UserID: userID, Prefix: prefix, KeyHash: string(hash), CreatedAt: now}
	return apiKeyPrefix + "_" + prefix + "_" + secret, key, nil
}

// Authenticate returns the key matching token, or nil if the token is
// malformed, unknown or wrong.
func (s *APIKeyStore) Authenticate(ctx context.Context, token string) (*model.APIKey, error) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) != 3 || parts[0] != apiKeyPrefix || parts[1] == "" || parts[2] == "" {
		return nil, nil
	}

	var k model.APIKey
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, prefix, key_hash, created_at, last_used_at FROM api_keys WHERE prefix = ?`, parts[1],
	).Scan(&k.ID, &k.UserID, &k.Prefix, &k.KeyHash, &k.CreatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(parts[2])) != nil {
		return nil, nil
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now, k.ID); err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}
	k.LastUsedAt = &now
	return &k, nil
}
