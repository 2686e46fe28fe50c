package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const generationKeyPrefix = "assets:"

// Entry is one cached asset response.
type Entry struct {
	Body        []byte `json:"body"`
	ContentType string `json:"contentType"`
}

// Store persists asset cache generations. A generation is a named snapshot
// of assets; callers only ever write a generation in full or overwrite
// single entries of an existing one.
type Store interface {
	Get(ctx context.Context, generation, path string) (*Entry, bool, error)
	Put(ctx context.Context, generation, path string, entry Entry) error
	PutAll(ctx context.Context, generation string, entries map[string]Entry) error
	Generations(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, generation string) error
}

// RedisStore keeps each generation in a redis hash keyed by asset path.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds the store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func generationKey(generation string) string {
	return generationKeyPrefix + generation
}

func (s *RedisStore) Get(ctx context.Context, generation, path string) (*Entry, bool, error) {
	raw, err := s.client.HGet(ctx, generationKey(generation), path).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, generation, path string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, generationKey(generation), path, raw).Err()
}

func (s *RedisStore) PutAll(ctx context.Context, generation string, entries map[string]Entry) error {
	fields := make(map[string]any, len(entries))
	for path, entry := range entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		fields[path] = raw
	}
	return s.client.HSet(ctx, generationKey(generation), fields).Err()
}

func (s *RedisStore) Generations(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, generationKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	generations := make([]string, 0, len(keys))
	for _, key := range keys {
		generations = append(generations, strings.TrimPrefix(key, generationKeyPrefix))
	}
	return generations, nil
}

func (s *RedisStore) Delete(ctx context.Context, generation string) error {
	return s.client.Del(ctx, generationKey(generation)).Err()
}

// MemoryStore is an in-process Store used when redis is not configured and
// in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[string]map[string]Entry
}

// NewMemoryStore builds the store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{generations: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, generation, path string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.generations[generation][path]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *MemoryStore) Put(_ context.Context, generation, path string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[generation] == nil {
		s.generations[generation] = make(map[string]Entry)
	}
	s.generations[generation][path] = entry
	return nil
}

func (s *MemoryStore) PutAll(_ context.Context, generation string, entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := make(map[string]Entry, len(entries))
	for path, entry := range entries {
		gen[path] = entry
	}
	s.generations[generation] = gen
	return nil
}

func (s *MemoryStore) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	return names, nil
}

func (s *MemoryStore) Delete(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, generation)
	return nil
}
