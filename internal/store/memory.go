/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package store

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests. It honors the same
// atomicity contract as the Redis implementation and can simulate an
// unreachable store via Fail.
type Memory struct {
	mu      sync.Mutex
	sets    map[string]map[string]bool
	values  map[string][]byte
	expiry  map[string]time.Time
	indexes map[string]map[string]float64

	// Fail makes every operation return ErrUnavailable while set.
	Fail bool
	// Now lets tests control TTL expiry; defaults to time.Now.
	Now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sets:    make(map[string]map[string]bool),
		values:  make(map[string][]byte),
		expiry:  make(map[string]time.Time),
		indexes: make(map[string]map[string]float64),
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// expire drops any key whose TTL has lapsed. Callers hold the lock.
func (m *Memory) expire() {
	now := m.now()
	for key, deadline := range m.expiry {
		if now.After(deadline) {
			delete(m.sets, key)
			delete(m.values, key)
			delete(m.expiry, key)
		}
	}
}

func (m *Memory) Healthy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) ClaimMember(_ context.Context, key, member string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return false, ErrUnavailable
	}
	m.expire()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]bool)
		m.sets[key] = set
	}
	added := !set[member]
	set[member] = true
	m.expiry[key] = m.now().Add(ttl)
	return added, nil
}

func (m *Memory) IsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return false, ErrUnavailable
	}
	m.expire()
	return m.sets[key][member], nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, ErrUnavailable
	}
	m.expire()

	var n int64
	for _, key := range keys {
		if _, ok := m.sets[key]; ok {
			delete(m.sets, key)
			n++
		} else if _, ok := m.values[key]; ok {
			delete(m.values, key)
			n++
		}
		delete(m.expiry, key)
	}
	return n, nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrUnavailable
	}
	m.expire()

	var keys []string
	for key := range m.sets {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	for key := range m.values {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) PutIndexed(_ context.Context, indexKey, key string, score float64, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrUnavailable
	}
	m.expire()

	m.values[key] = value
	m.expiry[key] = m.now().Add(ttl)
	index, ok := m.indexes[indexKey]
	if !ok {
		index = make(map[string]float64)
		m.indexes[indexKey] = index
	}
	index[key] = score
	return nil
}

func (m *Memory) IndexRange(_ context.Context, indexKey string, min, max float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrUnavailable
	}
	m.expire()
	return m.indexRangeLocked(indexKey, min, max), nil
}

func (m *Memory) indexRangeLocked(indexKey string, min, max float64) []string {
	type entry struct {
		key   string
		score float64
	}
	var entries []entry
	for key, score := range m.indexes[indexKey] {
		if score >= min && score <= max {
			entries = append(entries, entry{key: key, score: score})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

func (m *Memory) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrUnavailable
	}
	m.expire()

	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = m.values[key]
	}
	return values, nil
}

func (m *Memory) PruneIndex(_ context.Context, indexKey string, min, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, ErrUnavailable
	}
	m.expire()

	stale := m.indexRangeLocked(indexKey, min, max)
	for _, key := range stale {
		delete(m.values, key)
		delete(m.expiry, key)
		delete(m.indexes[indexKey], key)
	}
	return int64(len(stale)), nil
}

func (m *Memory) IndexCard(_ context.Context, indexKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, ErrUnavailable
	}
	return int64(len(m.indexes[indexKey])), nil
}
