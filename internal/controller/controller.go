// Package controller orchestrates the pipeline from raw filesystem events
// to terminal records. It owns the lifecycle of a watch session: intake
// from the event source, filtering, stabilization, the interactive
// dialogue, dispatch to the mover, and emission of journal records.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/add0794/automated-file-mover/internal/debounce"
	"github.com/add0794/automated-file-mover/internal/domain"
	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
	"github.com/add0794/automated-file-mover/internal/resolver"
	"github.com/add0794/automated-file-mover/internal/watcher"
)

// State is the controller lifecycle phase. It only moves forward.
type State int

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventSource produces the raw change feed for the watch root.
type EventSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
	Stop() error
}

// EntryMover relocates one entry and reports the attempt sequence.
type EntryMover interface {
	Move(ctx context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory
}

// Journal persists sessions and terminal records.
type Journal interface {
	SaveSession(ctx context.Context, session domain.Session) error
	AppendRecord(ctx context.Context, record *domain.Record) error
}

// Notifier announces completed moves. Delivery failures are the
// implementation's to log; the pipeline never depends on them.
type Notifier interface {
	Notify(ctx context.Context, record *domain.Record)
}

// Config holds the controller's parameters.
type Config struct {
	// WatchDir is the observed root, fixed for the session.
	WatchDir string

	// QuietPeriod is how long a path must stay unchanged before its entry
	// enters the pipeline.
	QuietPeriod time.Duration
}

// Deps bundles the pipeline pieces the controller drives.
type Deps struct {
	Source   EventSource
	Filter   *watcher.Filter
	Resolver resolver.Resolver
	Mover    EntryMover
	Journal  Journal
	Notifier Notifier // optional
	Logger   *slog.Logger
}

// Controller drives one watch session.
type Controller struct {
	cfg      Config
	source   EventSource
	filter   *watcher.Filter
	resolver resolver.Resolver
	mover    EntryMover
	journal  Journal
	notifier Notifier
	logger   *slog.Logger

	session   domain.Session
	debouncer *debounce.Debouncer

	// abortCtx is canceled only by Abort. Workers, dialogues, and
	// notifications run on it so a graceful drain leaves them untouched.
	abortCtx context.Context
	abort    context.CancelFunc

	mu       sync.Mutex
	state    State
	shutdown *domain.ShutdownRequest
	workers  map[string]*pathWorker
	tally    map[domain.ProcessingState]int

	drainCh   chan struct{}
	drainOnce sync.Once

	wg       sync.WaitGroup // path workers
	notifyWG sync.WaitGroup // in-flight notification deliveries
}

// New creates a controller for one session over the given dependencies.
func New(cfg Config, deps Deps) *Controller {
	abortCtx, abort := context.WithCancel(context.Background())

	c := &Controller{
		cfg:      cfg,
		source:   deps.Source,
		filter:   deps.Filter,
		resolver: deps.Resolver,
		mover:    deps.Mover,
		journal:  deps.Journal,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		session:  domain.NewSession(cfg.WatchDir),
		abortCtx: abortCtx,
		abort:    abort,
		state:    StateRunning,
		workers:  make(map[string]*pathWorker),
		tally:    make(map[domain.ProcessingState]int),
		drainCh:  make(chan struct{}),
	}
	c.debouncer = debounce.New(deps.Logger, cfg.QuietPeriod, c.enqueue)

	return c
}

// Session identifies this run in the journal.
func (c *Controller) Session() domain.Session {
	return c.session
}

// Run drives the pipeline until shutdown completes or the watch root is
// lost. It blocks; the caller owns signal handling and calls Shutdown and
// Abort from there.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.journal.SaveSession(ctx, c.session); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to record session start")
	}

	c.logger.Info("watching started",
		"root", c.cfg.WatchDir,
		"quiet_period", c.cfg.QuietPeriod,
		"session", c.session.ID,
	)

	fatal := c.intake(ctx)

	// The same drain path runs whether shutdown came from a signal, the
	// dialogue, a canceled context, or losing the watch root.
	c.drain()
	c.debouncer.Stop()
	c.wg.Wait()
	c.notifyWG.Wait()

	c.mu.Lock()
	c.state = StateStopped
	request := c.shutdown
	done := c.tally[domain.StateDone]
	failed := c.tally[domain.StateFailed]
	skipped := c.tally[domain.StateSkipped]
	c.mu.Unlock()

	if err := c.source.Stop(); err != nil {
		c.logger.Warn("event source shutdown failed", "error", err)
	}

	attrs := []any{
		"session", c.session.ID,
		"done", done,
		"failed", failed,
		"skipped", skipped,
	}
	if request != nil {
		attrs = append(attrs, "shutdown_origin", request.Origin)
	}
	c.logger.Info("watch session finished", attrs...)

	return fatal
}

// intake consumes the event source until draining begins or the root is
// lost. Source errors are diagnostics, not fatal conditions; the root
// disappearing arrives as an event.
func (c *Controller) intake(ctx context.Context) error {
	events := c.source.Events()
	errs := c.source.Errors()

	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-c.drainCh:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if fatal := c.handleEvent(ev); fatal != nil {
				return fatal
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("event source error", "error", err)
		}
	}

	return nil
}

// handleEvent routes one raw occurrence. Creations start stabilization,
// writes refresh it, removals cancel it. Writes to paths that were never
// created while watching belong to pre-existing entries and are not
// acted on.
func (c *Controller) handleEvent(ev watcher.Event) error {
	switch ev.Type {
	case watcher.EventRootGone:
		c.logger.Error("watch root is gone", "root", c.cfg.WatchDir)
		return domainerrors.WatchRootUnavailablef("watch root %s was removed or unmounted", c.cfg.WatchDir)
	case watcher.EventRemoved:
		c.debouncer.Cancel(ev.Path)
	case watcher.EventCreated:
		if !c.filter.Eligible(ev.Path) {
			c.logger.Debug("ignoring ineligible entry", "path", ev.Path)
			return nil
		}
		c.debouncer.Observe(ev.Path, ev.IsDir)
	case watcher.EventWritten:
		if c.debouncer.IsPending(ev.Path) {
			c.debouncer.Observe(ev.Path, ev.IsDir)
		}
	}
	return nil
}

// Shutdown begins draining: intake stops, queued-but-unstarted work is
// discarded, and entries mid-dialogue or mid-move finish their course
// without further retries. The first call stamps the session's shutdown
// request; later calls are no-ops.
func (c *Controller) Shutdown(origin domain.ShutdownOrigin) {
	c.mu.Lock()
	if c.shutdown == nil {
		request := domain.NewShutdownRequest(origin)
		c.shutdown = &request
	}
	c.mu.Unlock()

	c.drain()
}

// drain flips the lifecycle to draining and releases the intake loop.
// Run also calls it when intake ends without a request, so entries
// in flight settle the same way after a fatal root loss.
func (c *Controller) drain() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateDraining
		c.logger.Info("draining, in-flight entries will finish")
	}
	c.mu.Unlock()

	c.drainOnce.Do(func() { close(c.drainCh) })
}

// Abort forces shutdown: dialogues are cut off and no further move
// attempt starts; affected entries are recorded as failed with reason
// "aborted by shutdown". Implies drain.
func (c *Controller) Abort() {
	c.drain()
	c.logger.Warn("forcing shutdown, abandoning in-flight entries")
	c.abort()
}

// State returns the lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShutdownRequest returns the recorded request, or nil when the session
// ended without one (root loss or a canceled run context).
func (c *Controller) ShutdownRequest() *domain.ShutdownRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// IsDraining reports whether shutdown has begun. The mover consults this
// between attempts.
func (c *Controller) IsDraining() bool {
	return c.State() != StateRunning
}
