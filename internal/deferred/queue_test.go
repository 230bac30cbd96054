package deferred

import (
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when tasks tell it to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Push("task", func() error {
			order = append(order, i)
			return nil
		})
	}
	stats := q.Drain(time.Hour)
	if stats.Ran != 5 || stats.Remaining != 0 {
		t.Fatalf("Drain = %+v, want 5 ran, 0 remaining", stats)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestQueueDrainBudget(t *testing.T) {
	tests := []struct {
		name     string
		tasks    int
		cost     time.Duration
		budget   time.Duration
		wantRan  int
		wantLeft int
	}{
		{"negligible cost drains all", 100, 0, DefaultBudget, 100, 0},
		{"one ms tasks stop at budget", 100, time.Millisecond, DefaultBudget, 10, 90},
		{"slow task overshoots once", 3, 25 * time.Millisecond, DefaultBudget, 1, 2},
		{"zero budget runs nothing", 3, 0, 0, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(0, 0)}
			q := NewQueue()
			q.SetClock(clock.now)
			for i := 0; i < tt.tasks; i++ {
				q.Push("cost", func() error {
					clock.advance(tt.cost)
					return nil
				})
			}
			stats := q.Drain(tt.budget)
			if stats.Ran != tt.wantRan {
				t.Errorf("Ran = %d, want %d", stats.Ran, tt.wantRan)
			}
			if stats.Remaining != tt.wantLeft {
				t.Errorf("Remaining = %d, want %d", stats.Remaining, tt.wantLeft)
			}
			if tt.budget > 0 && stats.Elapsed > tt.budget+tt.cost {
				t.Errorf("Elapsed = %s, overshoot beyond one task past %s", stats.Elapsed, tt.budget)
			}
		})
	}
}

func TestQueueDrainWallClock(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 1_000_000; i++ {
		q.Push("noop", func() error { return nil })
	}
	start := time.Now()
	stats := q.Drain(DefaultBudget)
	if stats.Ran == 0 {
		t.Fatalf("Drain ran no tasks from a non-empty queue")
	}
	if elapsed := time.Since(start); elapsed > DefaultBudget+50*time.Millisecond {
		t.Errorf("Drain took %s, want close to %s", elapsed, DefaultBudget)
	}
}

func TestQueueFailuresDontStopDrain(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Push("ok", func() error { ran++; return nil })
	q.Push("err", func() error { ran++; return errors.New("boom") })
	q.Push("panic", func() error { ran++; panic("kaboom") })
	q.Push("ok", func() error { ran++; return nil })

	stats := q.Drain(time.Hour)
	if ran != 4 || stats.Ran != 4 {
		t.Fatalf("ran %d tasks (stats %+v), want 4", ran, stats)
	}
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
}

func TestQueueDiscard(t *testing.T) {
	q := NewQueue()
	q.Push("a", func() error { return nil })
	q.Push("b", func() error { return nil })
	q.Discard()
	if q.Len() != 0 {
		t.Fatalf("Len after Discard = %d, want 0", q.Len())
	}
	q.Push("c", func() error { return nil })
	if stats := q.Drain(time.Hour); stats.Ran != 1 {
		t.Errorf("Drain after Discard ran %d, want 1", stats.Ran)
	}
}

func TestQueueSteadyLoadStaysBounded(t *testing.T) {
	tests := []struct {
		name    string
		backlog int
	}{
		{"one behind", 1},
		{"ten behind", 10},
		{"hundred behind", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			var order []int
			next := 0
			push := func() {
				i := next
				next++
				q.Push("task", func() error {
					order = append(order, i)
					return nil
				})
			}
			for i := 0; i < tt.backlog; i++ {
				push()
			}
			// The queue never fully drains: one task in, one task out.
			for i := 0; i < 10_000; i++ {
				push()
				q.pop().Run()
				if len(q.tasks) > 2*(tt.backlog+1) {
					t.Fatalf("backing slice grew to %d with a backlog of %d", len(q.tasks), tt.backlog)
				}
			}
			if q.Len() != tt.backlog {
				t.Errorf("Len = %d, want %d", q.Len(), tt.backlog)
			}
			for i, v := range order {
				if v != i {
					t.Fatalf("order[%d] = %d, want FIFO", i, v)
				}
			}
		})
	}
}
