package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock keeps document locks in a map of tokens and expiry
// times. It counts every acquisition, refused attempt and extension so tests
// can check that a transition locked its document, and that a busy document
// was retried rather than mutated.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]mockHold
	acquired map[string]int
	refused  map[string]int
	extended map[string]int
	tokens   int

	// AcquireErr, when set, fails every Acquire call.
	AcquireErr error
	// PingErr is returned by Ping.
	PingErr error
}

// NewMockDistributedLock creates an empty lock table.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		held:     make(map[string]mockHold),
		acquired: make(map[string]int),
		refused:  make(map[string]int),
		extended: make(map[string]int),
	}
}

type mockHold struct {
	token  string
	expiry time.Time
}

func (m *MockDistributedLock) Acquire(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	if m.AcquireErr != nil {
		return "", false, m.AcquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heldLocked(name) {
		m.refused[name]++
		return "", false, nil
	}
	m.tokens++
	token := fmt.Sprintf("token-%d", m.tokens)
	m.held[name] = mockHold{token: token, expiry: time.Now().Add(ttl)}
	m.acquired[name]++
	return token, true, nil
}

func (m *MockDistributedLock) Release(_ context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name].token == token {
		delete(m.held, name)
	}
	return nil
}

func (m *MockDistributedLock) Extend(_ context.Context, name, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.heldLocked(name) || m.held[name].token != token {
		return fmt.Errorf("lock %s not held by %s", name, token)
	}
	m.held[name] = mockHold{token: token, expiry: time.Now().Add(ttl)}
	m.extended[name]++
	return nil
}

func (m *MockDistributedLock) Ping(context.Context) error {
	return m.PingErr
}

// IsHeld reports whether name is locked and unexpired.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldLocked(name)
}

// SetLockHeld simulates another instance holding name for ttl.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = mockHold{token: "elsewhere", expiry: time.Now().Add(ttl)}
}

// Acquisitions returns how many times name was successfully locked.
func (m *MockDistributedLock) Acquisitions(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired[name]
}

// Refusals returns how many Acquire calls found name already held.
func (m *MockDistributedLock) Refusals(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refused[name]
}

// Extensions returns how many times a hold on name was extended.
func (m *MockDistributedLock) Extensions(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extended[name]
}

func (m *MockDistributedLock) heldLocked(name string) bool {
	hold, ok := m.held[name]
	return ok && time.Now().Before(hold.expiry)
}
