// Package session persists exactly one record: the logged-in user, under a
// fixed key. Absent or corrupt data means "no session" and never an error —
// startup must not crash on a bad payload.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

const userKey = "rideshare:user"

type Store interface {
	Save(ctx context.Context, u models.User) error
	// Load returns (nil, nil) when no valid session exists.
	Load(ctx context.Context) (*models.User, error)
	Clear(ctx context.Context) error
}

// Memory is the default backend for local runs.
type Memory struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(ctx context.Context, u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.raw = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	raw := m.raw
	m.mu.Unlock()
	return decode(raw)
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.raw = nil
	m.mu.Unlock()
	return nil
}

// Redis keeps the session across process restarts.
type Redis struct {
	c *redis.Client
}

func NewRedis(addr, password string) *Redis {
	return &Redis{c: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (r *Redis) Save(ctx context.Context, u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.c.Set(ctx, userKey, b, 0).Err()
}

func (r *Redis) Load(ctx context.Context) (*models.User, error) {
	raw, err := r.c.Get(ctx, userKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.c.Del(ctx, userKey).Err()
}

func (r *Redis) Close() error { return r.c.Close() }

func decode(raw []byte) (*models.User, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil || !u.Role.Valid() || u.ID == "" {
		// corrupt payload is treated as no session
		return nil, nil
	}
	return &u, nil
}
