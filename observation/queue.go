package observation

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Task is anything the queue can flush: batched observers, bindings and
// views waiting to re-render.
type Task interface {
	Flush()
}

// Discarder is implemented by tasks that remember being queued. Stop calls
// Discard on every task it drops so the task can be queued again later.
type Discarder interface {
	Discard()
}

// TaskFunc adapts a function to Task. Each call to Enqueue with a TaskFunc
// is a distinct task.
type TaskFunc func()

func (f *TaskFunc) Flush() { (*f)() }

// Queue is the batched flush queue shared by one System. Every task runs at
// most once per cycle; a task queued again after it already ran waits for
// the next cycle.
type Queue struct {
	sys      *System
	pending  []Task
	waiting  mapset.Set[Task]
	flushing bool
	cycle    uint64
	depth    int
}

// Enqueue schedules t for the next flush. A task already waiting is not
// added twice.
func (q *Queue) Enqueue(t Task) {
	if q.waiting == nil {
		q.waiting = mapset.NewThreadUnsafeSet[Task]()
	}
	if !q.waiting.Add(t) {
		return
	}
	q.pending = append(q.pending, t)
}

// Post schedules fn for the next flush.
func (q *Queue) Post(fn func()) {
	f := TaskFunc(fn)
	q.Enqueue(&f)
}

// Flush runs one cycle: it polls dirty-checked properties, then drains
// pending tasks, including ones queued while draining. Calls during a flush
// or inside a batch are no-ops.
func (q *Queue) Flush() {
	if q.flushing || q.depth > 0 {
		return
	}
	q.flushing = true
	defer func() { q.flushing = false }()

	q.cycle++
	q.sys.dirty.Check()

	ran := mapset.NewThreadUnsafeSet[Task]()
	var deferred []Task
	for len(q.pending) > 0 {
		batch := q.pending
		q.pending = nil
		for _, t := range batch {
			if !ran.Add(t) {
				q.sys.warn("task queued again in the same flush, deferring to next cycle",
					"task", fmt.Sprintf("%T", t), "cycle", q.cycle)
				deferred = append(deferred, t)
				continue
			}
			q.waiting.Remove(t)
			q.sys.guard(t, func() error {
				t.Flush()
				return nil
			})
		}
	}
	q.pending = deferred
}

// Len is the number of tasks waiting.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Cycle counts the flushes run so far.
func (q *Queue) Cycle() uint64 {
	return q.cycle
}

func (q *Queue) reset() {
	for _, t := range q.pending {
		if d, ok := t.(Discarder); ok {
			d.Discard()
		}
	}
	q.pending = nil
	q.waiting = nil
	q.depth = 0
}
