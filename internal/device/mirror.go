// Package device mirrors the remote camera's session state and issues the
// commands that change it.
package device

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/client"
)

// StatusSource fetches the authoritative device state.
type StatusSource interface {
	Status(ctx context.Context) (*client.DeviceState, error)
}

// Change describes which fields differ between two states.
type Change struct {
	Connected bool
	Model     bool
	Battery   bool
	Storage   bool

	Before client.DeviceState
	After  client.DeviceState
}

// Any reports whether at least one field changed.
func (c Change) Any() bool {
	return c.Connected || c.Model || c.Battery || c.Storage
}

// Dropped reports a remote transition from connected to disconnected.
func (c Change) Dropped() bool {
	return c.Connected && c.Before.Connected && !c.After.Connected
}

func diff(before, after client.DeviceState) Change {
	return Change{
		Connected: before.Connected != after.Connected,
		Model:     before.Model != after.Model,
		Battery:   !sameInt(before.Battery, after.Battery),
		Storage:   !sameInt(before.StorageAvailable, after.StorageAvailable),
		Before:    before,
		After:     after,
	}
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Mirror holds the last-known DeviceState. It never emits events; callers
// decide what a Change means.
type Mirror struct {
	mu     sync.RWMutex
	state  client.DeviceState
	src    StatusSource
	logger *log.Logger

	// writes counts local edits so a refresh started before one is dropped.
	writes uint64
}

// NewMirror returns an empty, disconnected Mirror backed by src.
func NewMirror(src StatusSource, logger *log.Logger) *Mirror {
	return &Mirror{src: src, logger: logger}
}

// Read returns a copy of the current state.
func (m *Mirror) Read() client.DeviceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Refresh replaces the state wholesale with the device's answer. On failure
// the state is left untouched and the error is logged and returned. An
// answer that races a SetConnected is discarded with an empty Change.
func (m *Mirror) Refresh(ctx context.Context) (Change, error) {
	m.mu.RLock()
	start := m.writes
	m.mu.RUnlock()

	s, err := m.src.Status(ctx)
	if err != nil {
		m.logger.Warn("status refresh failed", "err", err)
		return Change{}, err
	}

	m.mu.Lock()
	if m.writes != start {
		m.mu.Unlock()
		m.logger.Debug("discarding stale status", "connected", s.Connected)
		return Change{}, nil
	}
	before := m.state
	m.state = s.Clone()
	after := m.state.Clone()
	m.mu.Unlock()

	return diff(before, after), nil
}

// SetConnected updates only the connected flag.
func (m *Mirror) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Connected = v
	m.writes++
}
