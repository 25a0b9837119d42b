package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNoCredentials is returned by Load when nothing is persisted.
	ErrNoCredentials = errors.New("no stored credentials")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrStoreCorrupt is returned when persisted bytes do not decode.
	ErrStoreCorrupt = errors.New("stored credentials corrupt")
)

// TokenStore persists credentials between runs. Delete of a missing entry is not an error.
type TokenStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Delete(ctx context.Context) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds Credentials
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Credentials{}, ErrNoCredentials
	}
	return s.creds, nil
}

func (s *MemoryStore) Save(_ context.Context, c Credentials) error {
	s.mu.Lock()
	s.creds, s.set = c, true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(context.Context) error {
	s.mu.Lock()
	s.creds, s.set = Credentials{}, false
	s.mu.Unlock()
	return nil
}

// FileStore keeps encoded credentials in a single file with 0600 permissions.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return c, nil
}

// Save writes to a temporary file and renames it over the target.
func (s *FileStore) Save(_ context.Context, c Credentials) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// RedisStore keeps encoded credentials under one key, shared by every
// process that uses the same profile.
//
//	Key: <prefix>:cred:<profile>
type RedisStore struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a store for profile. A ttl of zero keeps the entry
// until Delete; otherwise every Save resets the expiry.
func NewRedisStore(rdb redis.UniversalClient, prefix, profile string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "mj"
	}
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		redis: rdb,
		key:   prefix + ":cred:" + profile,
		ttl:   ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	c, err := Decode(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c Credentials) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports Redis round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
