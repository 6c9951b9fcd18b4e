package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
)

// Priority orders tasks that draw on the same canvases.
type Priority int

const (
	Low Priority = iota
	High
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

// Task is a draw callback scheduled for the next frame.
type Task struct {
	// Key deduplicates tasks within a frame.
	Key string
	// Owner is the dotted path of the node that scheduled the task. Deleting
	// the node cancels the task. Defaults to Key.
	Owner    string
	Priority Priority
	Canvases []CanvasVariant
	// Render draws at the given quality level.
	Render func(level int) error
}

// TaskFailure reports a task that returned an error or panicked.
type TaskFailure struct {
	Key string
	Err error
}

func (f *TaskFailure) Error() string { return fmt.Sprintf("render task %s: %v", f.Key, f.Err) }

func (f *TaskFailure) Unwrap() error { return f.Err }

type queued struct {
	Task
	seq uint64
	// Bit i is set when the task draws on Variants[i].
	mask uint
}

// Loop collects the tasks of a frame and runs them. Setting tasks is safe
// from any goroutine; Render is called by the owner of the frame.
type Loop struct {
	mutex sync.Mutex
	tasks map[string]*queued
	seq   uint64

	requested chan struct{}
	tracker   *perf.Tracker
	instr     instrument.Instrumentation
	failures  *prometheus.CounterVec
}

func newLoop(tracker *perf.Tracker, instr instrument.Instrumentation, failures *prometheus.CounterVec) *Loop {
	return &Loop{
		tasks:     make(map[string]*queued),
		requested: make(chan struct{}, 1),
		tracker:   tracker,
		instr:     instr,
		failures:  failures,
	}
}

// Set schedules t for the next frame. A task already pending under the same
// key is replaced entirely, priority included, and takes the position of a
// newly scheduled task.
func (l *Loop) Set(t Task) {
	if t.Owner == "" {
		t.Owner = t.Key
	}
	var mask uint
	for _, v := range t.Canvases {
		if layer := v.Layer(); layer >= 0 {
			mask |= 1 << layer
		}
	}
	l.mutex.Lock()
	l.seq++
	l.tasks[t.Key] = &queued{t, l.seq, mask}
	l.mutex.Unlock()
	select {
	case l.requested <- struct{}{}:
	default:
	}
}

// Request schedules t on behalf of the node whose hook ctx belongs to. Owner
// is set to the node's path, as is Key if empty.
func (l *Loop) Request(ctx *aether.Context, t Task) {
	t.Owner = ctx.Path().String()
	if t.Key == "" {
		t.Key = t.Owner
	}
	l.Set(t)
}

// Remove drops the pending task with the given key.
func (l *Loop) Remove(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.tasks, key)
}

// Cancel drops every pending task owned by owner or keyed by it. It returns
// the number of tasks dropped.
func (l *Loop) Cancel(owner string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	n := 0
	for key, q := range l.tasks {
		if q.Owner == owner || key == owner {
			delete(l.tasks, key)
			n++
		}
	}
	return n
}

// Requested is signalled when a task is set. Signals are coalesced.
func (l *Loop) Requested() <-chan struct{} { return l.requested }

// Pending returns the keys of pending tasks in the order they would run.
func (l *Loop) Pending() []string {
	l.mutex.Lock()
	tasks := l.sorted()
	l.mutex.Unlock()
	keys := make([]string, len(tasks))
	for i, q := range tasks {
		keys[i] = q.Key
	}
	return keys
}

// Must be called with the mutex held.
func (l *Loop) sorted() []*queued {
	tasks := make([]*queued, 0, len(l.tasks))
	for _, q := range l.tasks {
		tasks = append(tasks, q)
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if ga, gb := groupOrder(a.mask), groupOrder(b.mask); ga != gb {
			return ga < gb
		}
		if a.mask != b.mask {
			return a.mask < b.mask
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.seq < b.seq
	})
	return tasks
}

// Groups are ordered by their lowest layer; tasks without canvases run last.
func groupOrder(mask uint) int {
	for i := range Variants {
		if mask&(1<<i) != 0 {
			return i
		}
	}
	return len(Variants)
}

// Render runs and clears the pending tasks. Each task is measured by the
// tracker under its key and receives the key's current level. A failing
// task is reported and does not stop the remaining ones.
func (l *Loop) Render() []*TaskFailure {
	l.mutex.Lock()
	tasks := l.sorted()
	l.tasks = make(map[string]*queued)
	l.mutex.Unlock()

	var failures []*TaskFailure
	for _, q := range tasks {
		if err := l.run(q.Task); err != nil {
			f := &TaskFailure{Key: q.Key, Err: err}
			l.instr.Logger.Println(f)
			l.failures.WithLabelValues(q.Key).Inc()
			failures = append(failures, f)
		}
	}
	return failures
}

func (l *Loop) run(t Task) (err error) {
	level, done := l.tracker.Measure(t.Key)
	defer done()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if t.Render == nil {
		return nil
	}
	return t.Render(level)
}
