package observation

import (
	"fmt"
	"log/slog"
	"time"
)

// FlushMode selects when an observer delivers its notifications.
type FlushMode uint8

const (
	// FlushDefault defers to the system-wide default.
	FlushDefault FlushMode = iota
	// FlushBatched coalesces changes until the next Queue.Flush.
	FlushBatched
	// FlushSync notifies inside the mutating call.
	FlushSync
)

func (m FlushMode) String() string {
	switch m {
	case FlushBatched:
		return "batched"
	case FlushSync:
		return "sync"
	default:
		return "default"
	}
}

// ParseFlushMode accepts "batched", "sync" or "".
func ParseFlushMode(s string) (FlushMode, error) {
	switch s {
	case "", "default":
		return FlushDefault, nil
	case "batched":
		return FlushBatched, nil
	case "sync":
		return FlushSync, nil
	}
	return FlushDefault, fmt.Errorf("observation: unknown flush mode %q", s)
}

type OnErrorFunc func(from any, err error)

type OnDiagnosticFunc func(d Diagnostic)

// DirtyCheckSettings tune the polling fallback.
type DirtyCheckSettings struct {
	// Disabled keeps dirty-check observers from ever being polled.
	Disabled bool
	// Throw makes the locator fail instead of falling back to polling.
	Throw bool
	// Interval is how often a Loop polls when nothing else flushes.
	Interval time.Duration
}

// System is one application root: a single observer locator, flush queue
// and dirty checker shared by every binding under it.
type System struct {
	locator      *Locator
	queue        *Queue
	dirty        *DirtyChecker
	logger       *slog.Logger
	onError      OnErrorFunc
	onDiagnostic OnDiagnosticFunc
	defaultFlush FlushMode
	strict       bool
	dirtyCheck   DirtyCheckSettings
}

type Option func(*System)

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

// WithErrorHandler receives every isolated subscriber failure. Without one
// failures are logged.
func WithErrorHandler(fn OnErrorFunc) Option {
	return func(s *System) {
		s.onError = fn
	}
}

func WithDiagnostics(fn OnDiagnosticFunc) Option {
	return func(s *System) {
		s.onDiagnostic = fn
	}
}

func WithDefaultFlush(mode FlushMode) Option {
	return func(s *System) {
		if mode != FlushDefault {
			s.defaultFlush = mode
		}
	}
}

// WithStrictBinding makes bindings surface nil dereferences as errors.
func WithStrictBinding(strict bool) Option {
	return func(s *System) {
		s.strict = strict
	}
}

func WithDirtyCheck(settings DirtyCheckSettings) Option {
	return func(s *System) {
		s.dirtyCheck = settings
	}
}

func NewSystem(opts ...Option) *System {
	s := &System{
		logger:       slog.Default(),
		defaultFlush: FlushBatched,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locator = &Locator{sys: s, foreign: map[foreignKey]*DirtyCheckObserver{}}
	s.queue = &Queue{sys: s}
	s.dirty = &DirtyChecker{sys: s}
	return s
}

func (s *System) Locator() *Locator {
	return s.locator
}

func (s *System) Queue() *Queue {
	return s.queue
}

func (s *System) DirtyChecker() *DirtyChecker {
	return s.dirty
}

func (s *System) Logger() *slog.Logger {
	return s.logger
}

func (s *System) StrictBinding() bool {
	return s.strict
}

func (s *System) DirtyCheckSettings() DirtyCheckSettings {
	return s.dirtyCheck
}

// Flush delivers every batched notification pending on the queue.
func (s *System) Flush() {
	s.queue.Flush()
}

func (s *System) StartBatch() {
	s.queue.depth++
}

func (s *System) EndBatch() {
	s.queue.depth--
	if s.queue.depth == 0 {
		s.queue.Flush()
	}
}

// Batch runs cb with flushing suspended, then flushes once.
func (s *System) Batch(cb func()) {
	s.StartBatch()
	defer s.EndBatch()
	cb()
}

// Stop drains the queue one last time and forgets every polled and cached
// observer.
func (s *System) Stop() {
	s.queue.Flush()
	s.queue.reset()
	s.dirty.reset()
	s.locator.reset()
}

func (s *System) flushMode(m FlushMode) FlushMode {
	if m == FlushDefault {
		return s.defaultFlush
	}
	return m
}

// Report hands an update-time failure to the error handler, or logs it.
func (s *System) Report(from any, err error) {
	s.report(from, err)
}

func (s *System) report(from any, err error) {
	if s.onError != nil {
		s.onError(from, err)
		return
	}
	s.logger.Error("change delivery failed", slog.Any("error", err), slog.String("from", fmt.Sprintf("%T", from)))
}

func (s *System) diagnose(d Diagnostic) {
	s.logger.Debug(d.Kind.String(), slog.String("key", d.Key), slog.String("target", fmt.Sprintf("%T", d.Target)))
	if s.onDiagnostic != nil {
		s.onDiagnostic(d)
	}
}

// guard runs fn, converting a returned error or a panic into a
// SubscriberThrew report.
func (s *System) guard(from any, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.report(from, &Error{Kind: SubscriberThrew, Cause: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := fn(); err != nil {
		s.report(from, &Error{Kind: SubscriberThrew, Cause: err})
	}
}

func (s *System) deliverChange(subs *Subscribers[Subscriber], newValue, oldValue any) {
	subs.Each(func(sub Subscriber) {
		s.guard(sub, func() error {
			return sub.HandleChange(newValue, oldValue)
		})
	})
}

func (s *System) warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
}
