// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package refstore owns the reference frame set: one slot per buffer role,
// each holding at most one live buffer.
//
// Buffers enter the store freshly allocated through a [Lease] and leave it
// only through a release performed by the store. A buffer is never installed
// in two slots at once.
package refstore

import (
	"errors"
	"fmt"

	"github.com/gogpu/reproject/warp"
)

// Role names a slot of the reference frame set.
type Role uint8

const (
	// Color is the reference color captured on the last simulated tick.
	Color Role = iota

	// MotionDepth is the reference motion-vector and depth buffer.
	MotionDepth

	// Reprojected is the pre-warped frame kept by latency reduction.
	Reprojected

	// MotionHistory is the motion accumulated since the reference frame.
	MotionHistory

	roleCount
)

var roleNames = [roleCount]string{
	Color:         "color",
	MotionDepth:   "motion-depth",
	Reprojected:   "reprojected",
	MotionHistory: "motion-history",
}

func (r Role) String() string {
	if r < roleCount {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// ErrAliased is returned when a buffer is installed while it already
// occupies another slot.
var ErrAliased = errors.New("refstore: buffer already installed")

// Store is the slot table. It is not safe for concurrent use.
type Store struct {
	alloc  warp.Allocator
	format warp.Format
	slots  [roleCount]warp.Buffer
}

// New returns an empty store allocating through alloc.
func New(alloc warp.Allocator) *Store {
	return &Store{alloc: alloc, format: warp.DefaultFormat}
}

// Get returns the buffer installed in role, or nil.
func (s *Store) Get(role Role) warp.Buffer {
	if role >= roleCount {
		return nil
	}
	return s.slots[role]
}

// Has reports whether role holds a buffer.
func (s *Store) Has(role Role) bool { return s.Get(role) != nil }

// Live returns the number of installed buffers.
func (s *Store) Live() int {
	n := 0
	for _, b := range s.slots {
		if b != nil {
			n++
		}
	}
	return n
}

// Fits reports whether every installed buffer has the given size. An empty
// store fits any size.
func (s *Store) Fits(width, height int) bool {
	for _, b := range s.slots {
		if b != nil && (b.Width() != width || b.Height() != height) {
			return false
		}
	}
	return true
}

// Allocate creates one buffer of the store format. Failures wrap
// [warp.ErrAllocation]. The caller owns the result until it is installed.
func (s *Store) Allocate(width, height int, label string) (warp.Buffer, error) {
	desc := warp.BufferDesc{Width: width, Height: height, Format: s.format, Label: label}
	b, err := s.alloc.Allocate(desc)
	if err != nil {
		if errors.Is(err, warp.ErrAllocation) {
			return nil, fmt.Errorf("allocate %s: %w", label, err)
		}
		return nil, fmt.Errorf("allocate %s: %w: %w", label, warp.ErrAllocation, err)
	}
	return b, nil
}

// Release hands a buffer that was never installed back to the allocator.
// Installed buffers are left alone; they leave through ReleaseRole.
func (s *Store) Release(b warp.Buffer) {
	if b == nil || s.installed(b) >= 0 {
		return
	}
	s.alloc.Release(b)
}

// Lease allocates one buffer per label, all or nothing. On failure the
// buffers already allocated are released and the error is returned.
func (s *Store) Lease(width, height int, labels ...string) (*Lease, error) {
	l := &Lease{s: s, bufs: make([]warp.Buffer, 0, len(labels))}
	for _, label := range labels {
		b, err := s.Allocate(width, height, label)
		if err != nil {
			l.Discard()
			return nil, err
		}
		l.bufs = append(l.bufs, b)
	}
	return l, nil
}

// ReplaceColorAndMotionDepth installs a new reference color and
// motion-depth pair and releases the pair it supersedes.
func (s *Store) ReplaceColorAndMotionDepth(color, motionDepth warp.Buffer) error {
	if color == motionDepth {
		return fmt.Errorf("%w: color and motion-depth are the same buffer", ErrAliased)
	}
	if err := s.checkFree(color, Color); err != nil {
		return err
	}
	if err := s.checkFree(motionDepth, MotionDepth); err != nil {
		return err
	}
	s.swap(Color, color)
	s.swap(MotionDepth, motionDepth)
	return nil
}

// ReplaceMotionHistory installs a new motion history and releases the one
// it supersedes.
func (s *Store) ReplaceMotionHistory(history warp.Buffer) error {
	return s.replace(MotionHistory, history)
}

// ReplaceReprojected installs a new reprojected frame and releases the one
// it supersedes.
func (s *Store) ReplaceReprojected(reprojected warp.Buffer) error {
	return s.replace(Reprojected, reprojected)
}

// ReleaseRole releases the buffer installed in role, if any.
func (s *Store) ReleaseRole(role Role) {
	if role >= roleCount {
		return
	}
	s.swap(role, nil)
}

// Reset releases every installed buffer.
func (s *Store) Reset() {
	for r := Role(0); r < roleCount; r++ {
		s.swap(r, nil)
	}
}

func (s *Store) replace(role Role, b warp.Buffer) error {
	if err := s.checkFree(b, role); err != nil {
		return err
	}
	s.swap(role, b)
	return nil
}

// checkFree rejects nil buffers and buffers installed in a role other than
// role. Reinstalling a buffer in its own slot is a no-op.
func (s *Store) checkFree(b warp.Buffer, role Role) error {
	if b == nil {
		return fmt.Errorf("refstore: install nil %v buffer", role)
	}
	if r := s.installed(b); r >= 0 && Role(r) != role {
		return fmt.Errorf("%w: %s is the %v buffer", ErrAliased, b.Label(), Role(r))
	}
	return nil
}

// swap installs b in role, then releases the previous occupant.
func (s *Store) swap(role Role, b warp.Buffer) {
	old := s.slots[role]
	s.slots[role] = b
	if old != nil && old != b {
		s.alloc.Release(old)
	}
}

func (s *Store) installed(b warp.Buffer) int {
	for i, o := range s.slots {
		if o != nil && o == b {
			return i
		}
	}
	return -1
}

// Lease holds freshly allocated buffers until they are installed. Discard
// releases whatever was not taken, so deferring it covers every exit path.
type Lease struct {
	s    *Store
	bufs []warp.Buffer
}

// Buffer returns the i-th leased buffer, or nil once taken.
func (l *Lease) Buffer(i int) warp.Buffer { return l.bufs[i] }

// Buffers returns the buffers still held, in lease order.
func (l *Lease) Buffers() []warp.Buffer {
	return append([]warp.Buffer(nil), l.bufs...)
}

// Take hands the i-th buffer over to the caller; Discard no longer releases it.
func (l *Lease) Take(i int) warp.Buffer {
	b := l.bufs[i]
	l.bufs[i] = nil
	return b
}

// Discard releases every buffer not taken. It is safe to call more than once.
func (l *Lease) Discard() {
	if l == nil {
		return
	}
	for i, b := range l.bufs {
		if b != nil {
			l.s.alloc.Release(b)
			l.bufs[i] = nil
		}
	}
}
