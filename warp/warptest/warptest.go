// Package warptest provides a recording [warp.Backend] for tests.
//
// The backend never touches pixels. It hands out numbered buffers, records
// every allocate, release and invoke call in order, and fails any pass that
// reads or writes a buffer released earlier.
package warptest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/reproject/warp"
)

// Op is the kind of a recorded event.
type Op uint8

const (
	OpAllocate Op = iota
	OpRelease
	OpInvoke
)

func (o Op) String() string {
	switch o {
	case OpAllocate:
		return "allocate"
	case OpRelease:
		return "release"
	case OpInvoke:
		return "invoke"
	default:
		return fmt.Sprintf("Op(%d)", o)
	}
}

// Buffer is a handle produced by [Backend] or [NewHostBuffer].
type Buffer struct {
	id       int
	desc     warp.BufferDesc
	host     bool
	released bool
}

// ID returns the buffer number. Host buffers have negative IDs.
func (b *Buffer) ID() int { return b.id }

func (b *Buffer) Width() int          { return b.desc.Width }
func (b *Buffer) Height() int         { return b.desc.Height }
func (b *Buffer) Format() warp.Format { return b.desc.Format }
func (b *Buffer) Label() string       { return b.desc.Label }

// Released reports whether the buffer has been released.
func (b *Buffer) Released() bool { return b.released }

var hostIDs struct {
	sync.Mutex
	next int
}

// NewHostBuffer returns a host-owned buffer of the given size, standing in
// for the source and destination frames of the host pipeline.
func NewHostBuffer(width, height int, label string) *Buffer {
	hostIDs.Lock()
	hostIDs.next--
	id := hostIDs.next
	hostIDs.Unlock()
	return &Buffer{
		id:   id,
		desc: warp.BufferDesc{Width: width, Height: height, Format: warp.FormatRGBA8Unorm, Label: label},
		host: true,
	}
}

// Event is one recorded backend call.
type Event struct {
	Op Op

	// Buffer is the allocated or released buffer ID.
	Buffer int

	// Label is the allocation label.
	Label string

	Pass   warp.PassID
	Source int
	Reads  []int
	Writes []int
	Params warp.Params
}

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("warptest: injected failure")

// Backend is a recording [warp.Backend].
type Backend struct {
	mu     sync.Mutex
	next   int
	live   map[int]*Buffer
	events []Event

	// FailAllocate, when set, is consulted before every allocation; a
	// non-nil result fails it.
	FailAllocate func(n int, desc warp.BufferDesc) error

	// FailInvoke, when set, is consulted before every pass.
	FailInvoke func(pass warp.PassID) error
}

// New returns an empty recording backend.
func New() *Backend {
	return &Backend{live: make(map[int]*Buffer)}
}

// Allocate implements [warp.Allocator].
func (b *Backend) Allocate(desc warp.BufferDesc) (warp.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", warp.ErrAllocation, err)
	}
	n := b.next
	if b.FailAllocate != nil {
		if err := b.FailAllocate(n, desc); err != nil {
			return nil, fmt.Errorf("%w: %w", warp.ErrAllocation, err)
		}
	}
	b.next++
	buf := &Buffer{id: n + 1, desc: desc}
	b.live[buf.id] = buf
	b.events = append(b.events, Event{Op: OpAllocate, Buffer: buf.id, Label: desc.Label})
	return buf, nil
}

// Release implements [warp.Allocator]. Releasing a host buffer, a foreign
// buffer or an already released buffer is recorded as a no-op.
func (b *Backend) Release(buf warp.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tb, ok := buf.(*Buffer)
	if !ok || tb == nil || tb.host || tb.released {
		return
	}
	tb.released = true
	delete(b.live, tb.id)
	b.events = append(b.events, Event{Op: OpRelease, Buffer: tb.id})
}

// Invoke implements [warp.Invoker].
func (b *Backend) Invoke(pass warp.PassID, bind warp.Bindings, out ...warp.Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := warp.CheckOutputs(pass, out); err != nil {
		return err
	}
	if err := warp.Requires(pass, bind); err != nil {
		return err
	}

	ev := Event{Op: OpInvoke, Pass: pass, Params: bind.Params}
	inputs := []warp.Buffer{bind.Source, bind.SourceMotionDepth, bind.PreviousColor, bind.PreviousMotionDepth, bind.MotionHistory}
	for i, in := range inputs {
		if in == nil {
			continue
		}
		id, err := b.check(in)
		if err != nil {
			return fmt.Errorf("%v input %d: %w", pass, i, err)
		}
		if i == 0 {
			ev.Source = id
		}
		ev.Reads = append(ev.Reads, id)
	}
	for i, o := range out {
		id, err := b.check(o)
		if err != nil {
			return fmt.Errorf("%v output %d: %w", pass, i, err)
		}
		ev.Writes = append(ev.Writes, id)
	}

	if b.FailInvoke != nil {
		if err := b.FailInvoke(pass); err != nil {
			return fmt.Errorf("%w: %w", warp.ErrInvocation, err)
		}
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *Backend) check(buf warp.Buffer) (int, error) {
	tb, ok := buf.(*Buffer)
	if !ok {
		return 0, warp.ErrForeignBuffer
	}
	if tb.released {
		return tb.id, fmt.Errorf("%w: buffer %d", warp.ErrReleasedBuffer, tb.id)
	}
	return tb.id, nil
}

// Events returns a copy of the recorded events.
func (b *Backend) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Passes returns the invoked passes in order.
func (b *Backend) Passes() []warp.PassID {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []warp.PassID
	for _, ev := range b.events {
		if ev.Op == OpInvoke {
			out = append(out, ev.Pass)
		}
	}
	return out
}

// Clear drops the recorded events. Live buffers are kept.
func (b *Backend) Clear() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Live returns the number of allocated buffers not yet released.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Allocations returns the number of successful allocations so far.
func (b *Backend) Allocations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// FailAllocationAt returns a FailAllocate hook that fails every allocation
// attempted once n allocations have succeeded.
func FailAllocationAt(n int) func(int, warp.BufferDesc) error {
	return func(i int, _ warp.BufferDesc) error {
		if i == n {
			return ErrInjected
		}
		return nil
	}
}

// FailPass returns a FailInvoke hook failing every invocation of pass.
func FailPass(pass warp.PassID) func(warp.PassID) error {
	return func(p warp.PassID) error {
		if p == pass {
			return ErrInjected
		}
		return nil
	}
}

var _ warp.Backend = (*Backend)(nil)
