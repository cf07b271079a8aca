// Package locks provides per-key critical sections for index and record writes.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
)

// KeyedMutex is an in-process KeyedLocker. Each key owns a one-slot channel that
// is dropped once no caller holds or waits on it.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty in-process locker
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Len returns the number of keys currently held or awaited
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// New builds the locker selected by config.Locks.Backend
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.KeyedLocker, error) {
	switch config.Locks.Backend {
	case "", "local":
		return NewKeyedMutex(), nil
	case "redis":
		ttl := common.ParseDurationOr(config.Locks.TTL, 2*time.Minute)
		return NewRedisLocker(ctx, &config.Locks, ttl, logger)
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", config.Locks.Backend)
	}
}
