package guildconfig

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps configs in process.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]ServerConfig
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: map[string]ServerConfig{}}
}

func (s *MemoryStore) Get(ctx context.Context, guildID string) (ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return ServerConfig{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[guildID]
	if !ok {
		return ServerConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (s *MemoryStore) Put(ctx context.Context, cfg ServerConfig) (ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return ServerConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.configs[cfg.GuildID]; ok {
		cfg.CreatedAt = cur.CreatedAt
	}
	s.configs[cfg.GuildID] = cfg
	return cfg, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]ServerConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServerConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	slices.SortFunc(out, func(a, b ServerConfig) int { return strings.Compare(a.GuildID, b.GuildID) })
	return out, nil
}
