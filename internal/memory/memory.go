// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package memory tracks backend buffer allocations against a byte budget.
//
// Reference buffers are never evicted: a refused reservation surfaces as an
// allocation failure of the tick that asked for it.
package memory

import (
	"errors"
	"fmt"
	"sync"
)

// Budget errors.
var (
	// ErrBudgetExceeded is returned when a reservation would exceed budget.
	ErrBudgetExceeded = errors.New("memory: budget exceeded")

	// ErrClosed is returned when operating on a closed manager.
	ErrClosed = errors.New("memory: manager closed")

	// ErrAlreadyTracked is returned when a handle is reserved twice.
	ErrAlreadyTracked = errors.New("memory: handle already tracked")
)

// Default limits.
const (
	// DefaultMaxMemoryMB is the default budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the smallest accepted budget (1 MB).
	MinMemoryMB = 1
)

// Stats contains usage statistics.
type Stats struct {
	// TotalBytes is the budget in bytes.
	TotalBytes uint64

	// UsedBytes is the memory currently reserved.
	UsedBytes uint64

	// AvailableBytes is the remaining budget.
	AvailableBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// BufferCount is the number of live reservations.
	BufferCount int

	// RefusedCount is the number of reservations refused for budget.
	RefusedCount uint64

	// Utilization is the used fraction of the budget (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s Stats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, peak %d KB, %d buffers, %d refused]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.TotalBytes/1024,
		s.PeakBytes/1024,
		s.BufferCount,
		s.RefusedCount)
}

// Config holds configuration for creating a Manager.
type Config struct {
	// MaxMemoryMB is the budget in megabytes.
	// Defaults to DefaultMaxMemoryMB if below MinMemoryMB.
	MaxMemoryMB int
}

// Manager tracks reservations keyed by buffer handle.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	budgetBytes uint64
	usedBytes   uint64
	peakBytes   uint64
	refused     uint64

	entries map[any]uint64

	closed bool
}

// NewManager creates a manager with the configured budget.
func NewManager(config Config) *Manager {
	maxMB := config.MaxMemoryMB
	if maxMB < MinMemoryMB {
		maxMB = DefaultMaxMemoryMB
	}

	//nolint:gosec // G115: maxMB is bounded by MinMemoryMB minimum
	return &Manager{
		budgetBytes: uint64(maxMB) * 1024 * 1024,
		entries:     make(map[any]uint64),
	}
}

// Reserve accounts size bytes for handle. It fails without side effects when
// the reservation does not fit the remaining budget.
func (m *Manager) Reserve(handle any, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.entries[handle]; ok {
		return ErrAlreadyTracked
	}
	if avail := m.availableLocked(); size > avail {
		m.refused++
		return fmt.Errorf("%w: need %d bytes, have %d bytes available",
			ErrBudgetExceeded, size, avail)
	}

	m.entries[handle] = size
	m.usedBytes += size
	if m.usedBytes > m.peakBytes {
		m.peakBytes = m.usedBytes
	}
	return nil
}

// Free returns the reservation of handle to the budget. Unknown handles are
// ignored and reported false.
func (m *Manager) Free(handle any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.entries[handle]
	if !ok {
		return false
	}
	delete(m.entries, handle)
	m.usedBytes -= size
	return true
}

// Contains reports whether handle is tracked.
func (m *Manager) Contains(handle any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[handle]
	return ok
}

// Stats returns current usage statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var utilization float64
	if m.budgetBytes > 0 {
		utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}

	return Stats{
		TotalBytes:     m.budgetBytes,
		UsedBytes:      m.usedBytes,
		AvailableBytes: m.availableLocked(),
		PeakBytes:      m.peakBytes,
		BufferCount:    len(m.entries),
		RefusedCount:   m.refused,
		Utilization:    utilization,
	}
}

// SetBudget updates the budget. A budget below current usage is accepted;
// further reservations fail until enough buffers are freed.
func (m *Manager) SetBudget(megabytes int) error {
	if megabytes < MinMemoryMB {
		megabytes = MinMemoryMB
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	//nolint:gosec // G115: megabytes bounded by MinMemoryMB minimum
	m.budgetBytes = uint64(megabytes) * 1024 * 1024
	return nil
}

func (m *Manager) availableLocked() uint64 {
	if m.usedBytes >= m.budgetBytes {
		return 0
	}
	return m.budgetBytes - m.usedBytes
}

// Handles returns the live handles. The returned slice is a copy.
func (m *Manager) Handles() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]any, 0, len(m.entries))
	for h := range m.entries {
		out = append(out, h)
	}
	return out
}

// Close drops every reservation and refuses further ones. It returns the
// handles that were still live so the owner can destroy them.
func (m *Manager) Close() []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	live := make([]any, 0, len(m.entries))
	for h := range m.entries {
		live = append(live, h)
	}
	m.entries = nil
	m.usedBytes = 0
	m.closed = true
	return live
}
