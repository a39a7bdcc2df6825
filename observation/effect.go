package observation

// Effect re-runs fn whenever a property it read on its last run changes.
// The first run happens immediately; later runs happen on flush. The
// returned stop function unsubscribes it from everything.
func Effect(sys *System, fn func(w Watcher) error) (stop func()) {
	e := &effect{sys: sys, fn: fn}
	e.record = NewRecord(sys, e)
	e.run()
	return e.stop
}

type effect struct {
	sys     *System
	fn      func(w Watcher) error
	record  *Record
	queued  bool
	stopped bool
}

func (e *effect) HandleChange(_, _ any) error {
	e.schedule()
	return nil
}

func (e *effect) HandleCollectionChange(IndexMap, Collection) error {
	e.schedule()
	return nil
}

func (e *effect) schedule() {
	if e.queued || e.stopped {
		return
	}
	e.queued = true
	e.sys.queue.Enqueue(e)
}

func (e *effect) Flush() {
	e.queued = false
	if !e.stopped {
		e.run()
	}
}

func (e *effect) Discard() {
	e.queued = false
}

func (e *effect) run() {
	e.record.Begin()
	e.sys.guard(e, func() error {
		return e.fn(e.record)
	})
	if err := e.record.End(); err != nil {
		e.sys.report(e, err)
	}
}

func (e *effect) stop() {
	e.stopped = true
	e.record.Clear()
}
