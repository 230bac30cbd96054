// Package deferred holds background work (buffer construction) that is run
// opportunistically between frames under a time budget.
package deferred

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

var deferredLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("STIPPLE_DEBUG_DEFERRED") == "1" {
		deferredLogger = log.New(os.Stdout, "[deferred] ", log.Ltime|log.Lmsgprefix)
	}
}

// DefaultBudget is how long a single Drain may keep popping tasks.
const DefaultBudget = 10 * time.Millisecond

// Task is a named unit of deferred work.
type Task struct {
	Name string
	Run  func() error
}

// DrainStats describes a single Drain call.
type DrainStats struct {
	Ran       int
	Failed    int
	Remaining int
	Elapsed   time.Duration
}

// Queue is a FIFO of deferred tasks. It is confined to the render thread.
type Queue struct {
	tasks []Task
	head  int
	now   func() time.Time
}

// NewQueue creates an empty queue using the wall clock.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// SetClock overrides the clock used to measure the drain budget.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// Push appends a task to the back of the queue.
func (q *Queue) Push(name string, run func() error) {
	q.tasks = append(q.tasks, Task{Name: name, Run: run})
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.tasks) - q.head
}

// pop removes the oldest task. Once more than half the backing array is
// consumed the live tail is moved to the front, so a queue that never fully
// drains still stays bounded by its backlog.
func (q *Queue) pop() Task {
	task := q.tasks[q.head]
	q.tasks[q.head] = Task{}
	q.head++
	if q.head > len(q.tasks)/2 {
		n := copy(q.tasks, q.tasks[q.head:])
		for i := n; i < len(q.tasks); i++ {
			q.tasks[i] = Task{}
		}
		q.tasks = q.tasks[:n]
		q.head = 0
	}
	return task
}

// Drain runs the oldest tasks until the queue is empty or budget has elapsed
// since draining began. The budget is checked before each task, so one slow
// task can overshoot it. A failing task is logged and skipped.
func (q *Queue) Drain(budget time.Duration) DrainStats {
	var stats DrainStats
	start := q.now()
	for q.Len() > 0 && q.now().Sub(start) < budget {
		task := q.pop()
		if err := run(task); err != nil {
			stats.Failed++
			log.Printf("WARNING: deferred task %q failed: %v", task.Name, err)
		}
		stats.Ran++
	}
	stats.Elapsed = q.now().Sub(start)
	stats.Remaining = q.Len()
	if stats.Ran > 0 {
		deferredLogger.Printf("drained %d tasks (%d failed) in %s, %d remaining",
			stats.Ran, stats.Failed, stats.Elapsed, stats.Remaining)
	}
	return stats
}

// run executes a task, converting a panic into an error.
func run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run()
}

// Discard drops every queued task.
func (q *Queue) Discard() {
	if n := q.Len(); n > 0 {
		deferredLogger.Printf("discarding %d queued tasks", n)
	}
	q.tasks = nil
	q.head = 0
}
