package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestPoolCreate(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	if p.Workers() != 3 {
		t.Errorf("Workers() = %d, want 3", p.Workers())
	}
	if !p.IsRunning() {
		t.Error("pool should be running after creation")
	}

	q := NewPool(0)
	defer q.Close()
	if q.Workers() != runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want GOMAXPROCS", q.Workers())
	}
}

func TestPoolRun(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var n atomic.Int64
	tasks := make([]func(), 100)
	for i := range tasks {
		tasks[i] = func() { n.Add(1) }
	}
	p.Run(tasks)
	if n.Load() != 100 {
		t.Errorf("ran %d tasks, want 100", n.Load())
	}
}

func TestPoolRunAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()

	var n atomic.Int64
	p.Run([]func(){func() { n.Add(1) }, func() { n.Add(1) }})
	if n.Load() != 2 {
		t.Errorf("ran %d tasks on closed pool, want 2", n.Load())
	}
}

func TestPoolRowsCoverage(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	tests := []struct {
		height, minRows int
	}{
		{1, 16}, {7, 1}, {64, 16}, {1000, 8}, {3, 0},
	}
	for _, tt := range tests {
		seen := make([]atomic.Int32, tt.height)
		p.Rows(tt.height, tt.minRows, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				seen[y].Add(1)
			}
		})
		for y := range seen {
			if got := seen[y].Load(); got != 1 {
				t.Errorf("height %d: row %d visited %d times, want 1", tt.height, y, got)
			}
		}
	}
}
