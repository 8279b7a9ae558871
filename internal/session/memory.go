package session

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned by a medium that cannot be used at all.
var ErrUnavailable = errors.New("session storage unavailable")

// MemoryMedium is an in-process Medium. It is safe for concurrent use.
type MemoryMedium struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryMedium creates an empty MemoryMedium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: make(map[string]string)}
}

// Get implements Medium.
func (m *MemoryMedium) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Medium.
func (m *MemoryMedium) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete implements Medium.
func (m *MemoryMedium) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryMedium) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// FailingMedium wraps a Medium and fails the selected operations with Err,
// or ErrUnavailable when Err is nil. A nil Medium behaves as an empty
// MemoryMedium.
type FailingMedium struct {
	Medium     Medium
	FailGet    bool
	FailSet    bool
	FailDelete bool
	Err        error

	once sync.Once
}

func (m *FailingMedium) inner() Medium {
	m.once.Do(func() {
		if m.Medium == nil {
			m.Medium = NewMemoryMedium()
		}
	})
	return m.Medium
}

func (m *FailingMedium) err() error {
	if m.Err != nil {
		return m.Err
	}
	return ErrUnavailable
}

// Get implements Medium.
func (m *FailingMedium) Get(key string) (string, bool, error) {
	if m.FailGet {
		return "", false, m.err()
	}
	return m.inner().Get(key)
}

// Set implements Medium.
func (m *FailingMedium) Set(key, value string) error {
	if m.FailSet {
		return m.err()
	}
	return m.inner().Set(key, value)
}

// Delete implements Medium.
func (m *FailingMedium) Delete(key string) error {
	if m.FailDelete {
		return m.err()
	}
	return m.inner().Delete(key)
}

// unavailableMedium fails every call, like storage disabled in private browsing.
type unavailableMedium struct{}

func (unavailableMedium) Get(string) (string, bool, error) { return "", false, ErrUnavailable }
func (unavailableMedium) Set(string, string) error         { return ErrUnavailable }
func (unavailableMedium) Delete(string) error              { return ErrUnavailable }
