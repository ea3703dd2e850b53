package kpi

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ConfigCache holds the encoded active configuration between requests.
type ConfigCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopConfigCache struct{}

func NewNoopConfigCache() *NoopConfigCache {
	return &NoopConfigCache{}
}

func (c *NoopConfigCache) Get(context.Context) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *NoopConfigCache) Set(context.Context, []byte, time.Duration) error {
	return nil
}

func (c *NoopConfigCache) Invalidate(context.Context) error {
	return nil
}

type InMemoryConfigCache struct {
	mu        sync.RWMutex
	payload   []byte
	expiresAt time.Time
}

func NewInMemoryConfigCache() *InMemoryConfigCache {
	return &InMemoryConfigCache{}
}

func (c *InMemoryConfigCache) Get(context.Context) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.payload == nil || time.Now().UTC().After(c.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), c.payload...), true, nil
}

func (c *InMemoryConfigCache) Set(_ context.Context, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.payload = append([]byte(nil), value...)
	c.expiresAt = time.Now().UTC().Add(ttl)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryConfigCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.payload = nil
	c.mu.Unlock()
	return nil
}

func encodeConfiguration(cfg Configuration) ([]byte, error) {
	return json.Marshal(cfg)
}

func decodeConfiguration(payload []byte) (Configuration, error) {
	var cfg Configuration
	err := json.Unmarshal(payload, &cfg)
	return cfg, err
}
