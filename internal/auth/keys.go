package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// KeyRecord is a stored service key. Only the hash and prefix are kept.
type KeyRecord struct {
	ID        string
	Name      string
	KeyHash   string
	KeyPrefix string
}

// KeyStore looks up a service key by its clear prefix.
// Implementations return ErrInvalidAPIKey when no key matches.
type KeyStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*KeyRecord, error)
}

// SQLKeyStore reads service keys from the service_keys table.
type SQLKeyStore struct {
	db *sql.DB
}

func NewSQLKeyStore(db *sql.DB) *SQLKeyStore {
	return &SQLKeyStore{db: db}
}

// KeyRevoker marks a service key as revoked.
type KeyRevoker interface {
	Revoke(ctx context.Context, prefix string) error
}

func (s *SQLKeyStore) LookupByPrefix(ctx context.Context, prefix string) (*KeyRecord, error) {
	rec := &KeyRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, key_hash, key_prefix FROM service_keys
		 WHERE key_prefix = $1 AND revoked_at IS NULL`,
		prefix,
	).Scan(&rec.ID, &rec.Name, &rec.KeyHash, &rec.KeyPrefix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("SQLKeyStore.LookupByPrefix: %w", err)
	}
	return rec, nil
}

// Create generates a key, stores its hash and returns the plaintext key once.
func (s *SQLKeyStore) Create(ctx context.Context, name string) (string, *KeyRecord, error) {
	fullKey, hash, prefix, err := GenerateServiceKey()
	if err != nil {
		return "", nil, fmt.Errorf("SQLKeyStore.Create: %w", err)
	}
	rec := &KeyRecord{ID: uuid.NewString(), Name: name, KeyHash: hash, KeyPrefix: prefix}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO service_keys (id, name, key_hash, key_prefix) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Name, rec.KeyHash, rec.KeyPrefix,
	)
	if err != nil {
		return "", nil, fmt.Errorf("SQLKeyStore.Create: %w", err)
	}
	return fullKey, rec, nil
}

// Revoke stamps revoked_at on the key with prefix. Returns ErrInvalidAPIKey
// when no live key has that prefix.
func (s *SQLKeyStore) Revoke(ctx context.Context, prefix string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE service_keys SET revoked_at = now() WHERE key_prefix = $1 AND revoked_at IS NULL`,
		prefix,
	)
	if err != nil {
		return fmt.Errorf("SQLKeyStore.Revoke: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SQLKeyStore.Revoke: %w", err)
	}
	if n == 0 {
		return ErrInvalidAPIKey
	}
	return nil
}

// StaticKeyStore serves a single key hash from configuration.
type StaticKeyStore struct {
	rec KeyRecord
}

func NewStaticKeyStore(name, keyHash string) *StaticKeyStore {
	return &StaticKeyStore{rec: KeyRecord{ID: "static", Name: name, KeyHash: keyHash}}
}

func (s *StaticKeyStore) LookupByPrefix(_ context.Context, prefix string) (*KeyRecord, error) {
	rec := s.rec
	rec.KeyPrefix = prefix
	return &rec, nil
}

// KeyAuthenticator validates msk_ keys against a KeyStore with bcrypt.
// Verified keys are cached by SHA-256 digest. A cached key past its ttl is
// still accepted while one request re-verifies it in the background; a key
// the store no longer knows is evicted on that re-verification.
type KeyAuthenticator struct {
	store  KeyStore
	cache  *keyCache
	logger *zap.Logger
}

// NewKeyAuthenticator creates an authenticator. A zero ttl means 30s.
func NewKeyAuthenticator(store KeyStore, ttl time.Duration, logger *zap.Logger) *KeyAuthenticator {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &KeyAuthenticator{
		store:  store,
		cache:  newKeyCache(ttl),
		logger: logger,
	}
}

// Authenticate validates token. Store errors other than ErrInvalidAPIKey map
// to ErrAuthUnavailable.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, token string) (*ServiceContext, error) {
	if len(token) < keyPrefixLen {
		return nil, ErrInvalidAPIKey
	}

	if hit := a.cache.lookup(token); hit.found {
		if hit.refresh {
			go a.refresh(token)
		}
		return hit.service, nil
	}

	svc, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidAPIKey) {
			return nil, ErrInvalidAPIKey
		}
		a.logger.Warn("auth store unreachable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	a.cache.put(token, svc)
	return svc, nil
}

// Revoke revokes the key with prefix in the store, when the store supports
// it, and evicts every cached verification under that prefix.
func (a *KeyAuthenticator) Revoke(ctx context.Context, prefix string) error {
	if r, ok := a.store.(KeyRevoker); ok {
		if err := r.Revoke(ctx, prefix); err != nil {
			return fmt.Errorf("KeyAuthenticator.Revoke: %w", err)
		}
	}
	n := a.cache.evictPrefix(prefix)
	a.logger.Info("service key revoked", zap.String("key_prefix", prefix), zap.Int("evicted", n))
	return nil
}

// refresh re-verifies a cached key. A revoked or replaced key is evicted; a
// store outage keeps the entry until maxStale so auth survives short outages.
func (a *KeyAuthenticator) refresh(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, err := a.lookupAndVerify(ctx, token)
	switch {
	case err == nil:
		a.cache.put(token, svc)
	case errors.Is(err, ErrInvalidAPIKey):
		a.logger.Info("cached service key no longer valid, evicting",
			zap.String("key_prefix", token[:keyPrefixLen]))
		a.cache.evict(token)
	default:
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.releaseRefresh(token)
	}
}

func (a *KeyAuthenticator) lookupAndVerify(ctx context.Context, token string) (*ServiceContext, error) {
	rec, err := a.store.LookupByPrefix(ctx, token[:keyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.KeyHash), []byte(token)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &ServiceContext{KeyID: rec.ID, Name: rec.Name}, nil
}
