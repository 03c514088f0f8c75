package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// memoryListClient is an in-process ListClient used when no Redis is
// configured and in tests. TTLs are honored lazily on access.
type memoryListClient struct {
	mu     sync.Mutex
	lists  map[string][]string
	expiry map[string]time.Time
	closed bool
}

// NewMemoryListClient creates an in-memory list client
func NewMemoryListClient() ListClient {
	return &memoryListClient{
		lists:  make(map[string][]string),
		expiry: make(map[string]time.Time),
	}
}

func (m *memoryListClient) expireLocked(key string) {
	if deadline, ok := m.expiry[key]; ok && time.Now().After(deadline) {
		delete(m.lists, key)
		delete(m.expiry, key)
	}
}

func (m *memoryListClient) LPush(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *memoryListClient) RPop(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	list := m.lists[key]
	if len(list) == 0 {
		return "", ErrEmptyList
	}
	val := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	return val, nil
}

func (m *memoryListClient) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	out = append(out, list[start:stop+1]...)
	return out, nil
}

func (m *memoryListClient) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	return int64(len(m.lists[key])), nil
}

func (m *memoryListClient) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, key)
	delete(m.expiry, key)
	return nil
}

func (m *memoryListClient) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lists[key]; ok {
		m.expiry[key] = time.Now().Add(expiration)
	}
	return nil
}

func (m *memoryListClient) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.lists {
		m.expireLocked(key)
		if _, stillThere := m.lists[key]; !stillThere {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *memoryListClient) Ping(_ context.Context) error {
	return nil
}

func (m *memoryListClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.lists = make(map[string][]string)
	m.expiry = make(map[string]time.Time)
	return nil
}
