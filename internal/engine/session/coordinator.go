// Package session runs one scrape at a time against a page and reports its
// lifecycle: idle → running → completed | stopped | error.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/dedupe"
	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/engine/scraper"
	"github.com/rendis/leadtap/internal/model"
)

// ErrAlreadyRunning rejects a start while a session is running.
var ErrAlreadyRunning = errors.New("scraping is already in progress")

// Store persists what a session produces.
type Store interface {
	Records(ctx context.Context) ([]model.BusinessRecord, error)
	SaveRecords(ctx context.Context, records []model.BusinessRecord) error
	UpdateLastRun(ctx context.Context, fn func(*model.RunMetadata)) error
}

// Resolver maps a profile to an extractor factory.
type Resolver func(model.Profile) (scraper.Factory, error)

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	SessionID string
	Status    model.Status
	Count     int
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithListener registers a listener for session events. Listeners run on the
// session goroutine and must not block for long. A listener may call Start,
// Stop and Status but not Wait.
func WithListener(l Listener) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, l) }
}

func WithResolver(r Resolver) Option {
	return func(c *Coordinator) { c.resolve = r }
}

// WithTimings overrides extractor waits, mostly for tests.
func WithTimings(t scraper.Timings) Option {
	return func(c *Coordinator) { c.timings = t }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the session state for one page.
type Coordinator struct {
	page      dom.Page
	store     Store
	log       *zap.Logger
	listeners []Listener
	resolve   Resolver
	timings   scraper.Timings
	now       func() time.Time

	// emitMu orders listener calls across sessions. It is never taken
	// while mu is held.
	emitMu sync.Mutex

	mu        sync.Mutex
	status    model.Status
	sessionID string
	count     int
	records   []model.BusinessRecord
	extractor scraper.Extractor
	stopReq   bool
	done      chan struct{}
}

func New(page dom.Page, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		page:    page,
		store:   store,
		log:     zap.NewNop(),
		resolve: scraper.Lookup,
		now:     time.Now,
		status:  model.StatusIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins a session and returns once it is running. ctx bounds the
// whole run. A start while running returns ErrAlreadyRunning and leaves the
// running session untouched.
func (c *Coordinator) Start(ctx context.Context, opts model.StartOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	factory, err := c.resolve(opts.Profile)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.status == model.StatusRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}

	id := uuid.NewString()
	ex := factory(c.page, scraper.Options{
		MaxResults:  opts.MaxResults,
		ScrollDelay: opts.ScrollDelay(),
		Timings:     c.timings,
		OnProgress:  func(n int) { c.progress(id, n) },
		Logger:      c.log.With(zap.String("session", id)),
		Now:         c.now,
	})

	c.status = model.StatusRunning
	c.sessionID = id
	c.count = 0
	c.records = nil
	c.extractor = ex
	c.stopReq = false
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	c.log.Info("session started",
		zap.String("session", id),
		zap.String("profile", string(opts.Profile)),
		zap.Int("max_results", opts.MaxResults),
		zap.Int("scroll_delay_ms", opts.DelayBetweenScrollsMs))

	startedAt := c.now().UTC()
	c.updateLastRun(ctx, func(m *model.RunMetadata) {
		*m = model.RunMetadata{
			SessionID: id,
			StartedAt: &startedAt,
			Profile:   opts.Profile,
			Status:    model.StatusRunning,
		}
	})

	go c.run(ctx, id, ex, done)
	return nil
}

// Stop asks the running extractor to halt at its next checkpoint. The
// session settles as stopped once the extractor returns. Calling Stop when
// nothing runs is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.status != model.StatusRunning || c.extractor == nil {
		c.mu.Unlock()
		return
	}
	c.stopReq = true
	ex := c.extractor
	id := c.sessionID
	c.mu.Unlock()

	c.log.Info("stop requested", zap.String("session", id))
	ex.Stop()
}

func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{SessionID: c.sessionID, Status: c.status, Count: c.count}
}

// Records returns the deduplicated records of the last settled session.
func (c *Coordinator) Records() []model.BusinessRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.BusinessRecord(nil), c.records...)
}

// Wait blocks until the current session settles or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) progress(id string, n int) {
	c.mu.Lock()
	if c.sessionID != id {
		c.mu.Unlock()
		return
	}
	c.count = n
	c.mu.Unlock()

	c.emit(Event{Kind: EventProgress, SessionID: id, Count: n, Status: model.StatusRunning})
}

func (c *Coordinator) run(ctx context.Context, id string, ex scraper.Extractor, done chan struct{}) {
	defer close(done)

	records, err := ex.Start(ctx)

	c.mu.Lock()
	stopped := c.stopReq
	c.mu.Unlock()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		stopped, err = true, nil
	}

	// Settling must persist even when ctx was cancelled.
	persistCtx := context.WithoutCancel(ctx)

	if err != nil {
		c.fail(persistCtx, id, err)
		return
	}

	unique := dedupe.Records(records)
	if err := c.persist(persistCtx, unique); err != nil {
		c.fail(persistCtx, id, err)
		return
	}

	final := model.StatusCompleted
	if stopped {
		final = model.StatusStopped
	}
	finishedAt := c.now().UTC()
	c.updateLastRun(persistCtx, func(m *model.RunMetadata) {
		m.FinishedAt = &finishedAt
		m.Total = len(unique)
		m.Status = final
	})

	c.log.Info("session finished",
		zap.String("session", id),
		zap.String("status", string(final)),
		zap.Int("scraped", len(records)),
		zap.Int("unique", len(unique)))

	last := Event{Kind: EventProgress, SessionID: id, Status: final, Count: len(unique)}
	if final == model.StatusCompleted {
		last.Kind, last.Total = EventDone, len(unique)
	}
	c.finish(final, unique, len(unique), last)
}

func (c *Coordinator) persist(ctx context.Context, unique []model.BusinessRecord) error {
	existing, err := c.store.Records(ctx)
	if err != nil {
		return fmt.Errorf("loading stored records: %w", err)
	}
	if err := c.store.SaveRecords(ctx, dedupe.Merge(existing, unique)); err != nil {
		return fmt.Errorf("saving records: %w", err)
	}
	return nil
}

func (c *Coordinator) fail(ctx context.Context, id string, err error) {
	c.log.Error("session failed", zap.String("session", id), zap.Error(err))

	finishedAt := c.now().UTC()
	c.updateLastRun(ctx, func(m *model.RunMetadata) {
		m.FinishedAt = &finishedAt
		m.Status = model.StatusError
		m.Error = err.Error()
	})

	c.mu.Lock()
	count := c.count
	c.mu.Unlock()

	c.finish(model.StatusError, nil, count,
		Event{Kind: EventError, SessionID: id, Status: model.StatusError, Count: count, Message: err.Error()})
}

// finish settles the session and delivers its terminal event. A session
// started from that moment on cannot reach listeners before last does.
func (c *Coordinator) finish(status model.Status, records []model.BusinessRecord, count int, last Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.settle(status, records, count)
	c.deliver(last)
}

func (c *Coordinator) settle(status model.Status, records []model.BusinessRecord, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.records = records
	c.count = count
	c.extractor = nil
}

func (c *Coordinator) updateLastRun(ctx context.Context, fn func(*model.RunMetadata)) {
	if err := c.store.UpdateLastRun(ctx, fn); err != nil {
		c.log.Warn("updating last run metadata", zap.Error(err))
	}
}

func (c *Coordinator) emit(e Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.deliver(e)
}

func (c *Coordinator) deliver(e Event) {
	for _, l := range c.listeners {
		l(e)
	}
}
