package memory

import (
	"errors"
	"strings"
	"testing"
)

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(Config{})
	if got := m.Stats().TotalBytes; got != DefaultMaxMemoryMB*1024*1024 {
		t.Errorf("TotalBytes = %d, want %d", got, DefaultMaxMemoryMB*1024*1024)
	}
}

func TestReserveFree(t *testing.T) {
	m := NewManager(Config{MaxMemoryMB: 1})
	a, b := new(int), new(int)

	if err := m.Reserve(a, 600*1024); err != nil {
		t.Fatalf("Reserve(a) error = %v", err)
	}
	if err := m.Reserve(a, 1); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("Reserve(a) twice = %v, want ErrAlreadyTracked", err)
	}
	if err := m.Reserve(b, 600*1024); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Reserve(b) = %v, want ErrBudgetExceeded", err)
	}
	if m.Contains(b) {
		t.Error("refused reservation is tracked")
	}

	if !m.Free(a) {
		t.Error("Free(a) = false, want true")
	}
	if m.Free(a) {
		t.Error("second Free(a) = true, want false")
	}
	if err := m.Reserve(b, 600*1024); err != nil {
		t.Errorf("Reserve(b) after free error = %v", err)
	}

	st := m.Stats()
	if st.BufferCount != 1 || st.UsedBytes != 600*1024 || st.PeakBytes != 600*1024 || st.RefusedCount != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestSetBudgetBelowUsage(t *testing.T) {
	m := NewManager(Config{MaxMemoryMB: 4})
	h := new(int)
	if err := m.Reserve(h, 3*1024*1024); err != nil {
		t.Fatal(err)
	}
	if err := m.SetBudget(2); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if got := m.Stats().AvailableBytes; got != 0 {
		t.Errorf("AvailableBytes = %d, want 0", got)
	}
	if err := m.Reserve(new(int), 1); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Reserve() over budget = %v, want ErrBudgetExceeded", err)
	}
	m.Free(h)
	if err := m.Reserve(new(int), 1024*1024); err != nil {
		t.Errorf("Reserve() after free error = %v", err)
	}
}

func TestClose(t *testing.T) {
	m := NewManager(Config{MaxMemoryMB: 1})
	h := new(int)
	_ = m.Reserve(h, 16)

	live := m.Close()
	if len(live) != 1 || live[0] != any(h) {
		t.Errorf("Close() = %v, want [h]", live)
	}
	if err := m.Reserve(new(int), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Reserve() after Close = %v, want ErrClosed", err)
	}
	if err := m.SetBudget(2); !errors.Is(err, ErrClosed) {
		t.Errorf("SetBudget() after Close = %v, want ErrClosed", err)
	}
	if m.Close() != nil {
		t.Error("second Close() returned handles")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{TotalBytes: 2048, UsedBytes: 1024, PeakBytes: 1024, BufferCount: 1, Utilization: 0.5}
	got := s.String()
	if !strings.Contains(got, "50.0% used") || !strings.Contains(got, "1/2 KB") {
		t.Errorf("String() = %q", got)
	}
}
