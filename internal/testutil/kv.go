package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/fieldcheck/internal/store"
)

// ErrInjected is returned by MemoryKV operations after Fail is called.
var ErrInjected = errors.New("injected store failure")

// MemoryKV is an in-memory store.KV with failure injection.
//
// Ordering matches store.Store: List returns items in insertion order and
// Set on an existing key keeps its position.
type MemoryKV struct {
	mu    sync.Mutex
	seq   int64
	data  map[string]map[string]store.Item
	fails map[string]error
}

var _ store.KV = (*MemoryKV)(nil)

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data:  make(map[string]map[string]store.Item),
		fails: make(map[string]error),
	}
}

// Fail makes the named operation ("get", "set", "add", "delete", "list",
// "count") return err until Heal is called. A nil err means ErrInjected.
func (m *MemoryKV) Fail(op string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[op] = err
}

// Heal clears every injected failure.
func (m *MemoryKV) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails = make(map[string]error)
}

// Get implements store.KV.
func (m *MemoryKV) Get(_ context.Context, bucket, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["get"]; err != nil {
		return nil, false, err
	}
	it, ok := m.data[bucket][key]
	if !ok {
		return nil, false, nil
	}
	return clone(it.Value), true, nil
}

// Set implements store.KV.
func (m *MemoryKV) Set(_ context.Context, bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["set"]; err != nil {
		return err
	}
	b := m.bucket(bucket)
	if it, ok := b[key]; ok {
		it.Value = clone(value)
		b[key] = it
		return nil
	}
	m.seq++
	b[key] = store.Item{Key: key, Value: clone(value), Seq: m.seq}
	return nil
}

// Add implements store.KV.
func (m *MemoryKV) Add(_ context.Context, bucket, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["add"]; err != nil {
		return false, err
	}
	b := m.bucket(bucket)
	if _, ok := b[key]; ok {
		return false, nil
	}
	m.seq++
	b[key] = store.Item{Key: key, Value: clone(value), Seq: m.seq}
	return true, nil
}

// Delete implements store.KV.
func (m *MemoryKV) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["delete"]; err != nil {
		return err
	}
	delete(m.data[bucket], key)
	return nil
}

// List implements store.KV.
func (m *MemoryKV) List(_ context.Context, bucket string) ([]store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["list"]; err != nil {
		return nil, err
	}
	items := make([]store.Item, 0, len(m.data[bucket]))
	for _, it := range m.data[bucket] {
		it.Value = clone(it.Value)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Seq < items[j].Seq
	})
	return items, nil
}

// Count implements store.KV.
func (m *MemoryKV) Count(_ context.Context, bucket string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["count"]; err != nil {
		return 0, err
	}
	return len(m.data[bucket]), nil
}

// Raw writes value under key without any encoding, for corrupt-record tests.
func (m *MemoryKV) Raw(bucket, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.bucket(bucket)[key] = store.Item{Key: key, Value: clone(value), Seq: m.seq}
}

func (m *MemoryKV) bucket(name string) map[string]store.Item {
	b, ok := m.data[name]
	if !ok {
		b = make(map[string]store.Item)
		m.data[name] = b
	}
	return b
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
