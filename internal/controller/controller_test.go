package controller

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/add0794/automated-file-mover/internal/domain"
	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
	"github.com/add0794/automated-file-mover/internal/resolver"
	"github.com/add0794/automated-file-mover/internal/watcher"
)

const testQuiet = 25 * time.Millisecond

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeSource feeds scripted events into the controller.
type fakeSource struct {
	events chan watcher.Event
	errs   chan error

	mu      sync.Mutex
	stopped bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan watcher.Event, 16),
		errs:   make(chan error, 4),
	}
}

func (f *fakeSource) Events() <-chan watcher.Event { return f.events }
func (f *fakeSource) Errors() <-chan error         { return f.errs }

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fakeResolver answers dialogues with a scripted function and signals
// each call on a channel so tests can synchronize with the worker.
type fakeResolver struct {
	fn    func(ctx context.Context, req resolver.Request) (resolver.Decision, error)
	calls chan resolver.Request

	mu   sync.Mutex
	reqs []resolver.Request
}

func newFakeResolver(fn func(ctx context.Context, req resolver.Request) (resolver.Decision, error)) *fakeResolver {
	return &fakeResolver{fn: fn, calls: make(chan resolver.Request, 16)}
}

func (f *fakeResolver) Resolve(ctx context.Context, req resolver.Request) (resolver.Decision, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	f.calls <- req
	return f.fn(ctx, req)
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

// fakeMover scripts move outcomes per destination.
type fakeMover struct {
	fn func(ctx context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory

	mu    sync.Mutex
	calls []string // destinations in call order
}

func (f *fakeMover) Move(ctx context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
	f.mu.Lock()
	f.calls = append(f.calls, destination)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, entry, destination)
	}
	return successHistory(entry.Path, destination)
}

func successHistory(source, destination string) *domain.MoveHistory {
	h := &domain.MoveHistory{Source: source, Destination: destination}
	h.Record(domain.MoveAttempt{Source: source, Destination: destination, Outcome: domain.OutcomeSuccess})
	return h
}

func failedHistory(source, destination, reason string) *domain.MoveHistory {
	h := &domain.MoveHistory{Source: source, Destination: destination}
	h.Record(domain.MoveAttempt{
		Source:      source,
		Destination: destination,
		Outcome:     domain.OutcomePermanentFailure,
		Error:       reason,
	})
	return h
}

// fakeJournal collects sessions and records, signaling each append.
type fakeJournal struct {
	appended chan *domain.Record

	mu       sync.Mutex
	sessions []domain.Session
	records  []*domain.Record
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{appended: make(chan *domain.Record, 16)}
}

func (f *fakeJournal) SaveSession(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeJournal) AppendRecord(_ context.Context, record *domain.Record) error {
	f.mu.Lock()
	f.records = append(f.records, record)
	f.mu.Unlock()
	f.appended <- record
	return nil
}

func (f *fakeJournal) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeNotifier collects notified records.
type fakeNotifier struct {
	notified chan *domain.Record
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notified: make(chan *domain.Record, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, record *domain.Record) {
	f.notified <- record
}

// harness wires a controller over fakes with a real temp watch root, since
// workers stat the paths they process.
type harness struct {
	t        *testing.T
	root     string
	source   *fakeSource
	resolver *fakeResolver
	mover    *fakeMover
	journal  *fakeJournal
	notifier *fakeNotifier
	ctrl     *Controller
	runErr   chan error
}

func newHarness(t *testing.T, resolveFn func(ctx context.Context, req resolver.Request) (resolver.Decision, error)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		root:     t.TempDir(),
		source:   newFakeSource(),
		resolver: newFakeResolver(resolveFn),
		mover:    &fakeMover{},
		journal:  newFakeJournal(),
		notifier: newFakeNotifier(),
		runErr:   make(chan error, 1),
	}

	h.ctrl = New(
		Config{WatchDir: h.root, QuietPeriod: testQuiet},
		Deps{
			Source:   h.source,
			Filter:   watcher.NewFilter(h.root, nil),
			Resolver: h.resolver,
			Mover:    h.mover,
			Journal:  h.journal,
			Notifier: h.notifier,
			Logger:   testLogger(),
		},
	)
	return h
}

func (h *harness) start() {
	go func() { h.runErr <- h.ctrl.Run(context.Background()) }()
}

func (h *harness) waitStopped() error {
	h.t.Helper()
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(3 * time.Second):
		h.t.Fatal("controller did not stop in time")
		return nil
	}
}

// createFile writes a file under the watch root and feeds its creation
// event to the controller.
func (h *harness) createFile(name string) string {
	h.t.Helper()
	path := filepath.Join(h.root, name)
	require.NoError(h.t, os.WriteFile(path, []byte("data"), 0o644))
	h.source.events <- watcher.Event{Type: watcher.EventCreated, Path: path, Size: 4}
	return path
}

func (h *harness) waitRecord() *domain.Record {
	h.t.Helper()
	select {
	case record := <-h.journal.appended:
		return record
	case <-time.After(3 * time.Second):
		h.t.Fatal("no record reached the journal in time")
		return nil
	}
}

func (h *harness) waitResolverCall() resolver.Request {
	h.t.Helper()
	select {
	case req := <-h.resolver.calls:
		return req
	case <-time.After(3 * time.Second):
		h.t.Fatal("resolver was not asked in time")
		return resolver.Request{}
	}
}

func moveDecision(destination string, notify bool) func(context.Context, resolver.Request) (resolver.Decision, error) {
	return func(context.Context, resolver.Request) (resolver.Decision, error) {
		return resolver.Decision{Action: resolver.ActionMove, Destination: destination, Notify: notify}, nil
	}
}

func skipDecision() func(context.Context, resolver.Request) (resolver.Decision, error) {
	return func(context.Context, resolver.Request) (resolver.Decision, error) {
		return resolver.Decision{Action: resolver.ActionSkip}, nil
	}
}

func TestController_MoveHappyPath(t *testing.T) {
	h := newHarness(t, moveDecision("/tmp/dest/report.pdf", true))
	h.start()

	path := h.createFile("report.pdf")

	record := h.waitRecord()
	assert.Equal(t, path, record.Source)
	assert.Equal(t, "/tmp/dest/report.pdf", record.Destination)
	assert.Equal(t, domain.StateDone, record.State)
	assert.Equal(t, 1, record.Attempts)
	assert.Empty(t, record.Error)
	assert.Equal(t, h.ctrl.Session().ID, record.SessionID)

	// Opted-in notification fires for the completed move.
	select {
	case notified := <-h.notifier.notified:
		assert.Equal(t, record.Source, notified.Source)
		assert.Equal(t, domain.StateDone, notified.State)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never fired")
	}

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
	assert.Equal(t, StateStopped, h.ctrl.State())
	assert.True(t, h.source.wasStopped())

	// The session was journaled at startup.
	require.Len(t, h.journal.sessions, 1)
	assert.Equal(t, h.root, h.journal.sessions[0].WatchDir)
}

func TestController_SkipLeavesEntryInPlace(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	path := h.createFile("keep.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateSkipped, record.State)
	assert.Empty(t, record.Destination)
	assert.Zero(t, record.Attempts)
	assert.FileExists(t, path)
	assert.Empty(t, h.mover.calls)

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_NoNotificationWithoutOptIn(t *testing.T) {
	h := newHarness(t, moveDecision("/tmp/dest/quiet.txt", false))
	h.start()

	h.createFile("quiet.txt")
	h.waitRecord()

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())

	select {
	case <-h.notifier.notified:
		t.Fatal("notification fired without opt-in")
	default:
	}
}

func TestController_ResolverStopEndsSession(t *testing.T) {
	h := newHarness(t, func(context.Context, resolver.Request) (resolver.Decision, error) {
		return resolver.Decision{Action: resolver.ActionStop}, nil
	})
	h.start()

	h.createFile("last.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateSkipped, record.State)

	// The controller drains itself; no external Shutdown call.
	require.NoError(t, h.waitStopped())
	assert.Equal(t, StateStopped, h.ctrl.State())

	request := h.ctrl.ShutdownRequest()
	require.NotNil(t, request)
	assert.Equal(t, domain.ShutdownByResolver, request.Origin)
	assert.False(t, request.Time.IsZero())
}

func TestController_ShutdownKeepsFirstOrigin(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	h.ctrl.Shutdown(domain.ShutdownByResolver)
	require.NoError(t, h.waitStopped())

	request := h.ctrl.ShutdownRequest()
	require.NotNil(t, request)
	assert.Equal(t, domain.ShutdownBySignal, request.Origin)
}

func TestController_FailureRePromptWithNewDestination(t *testing.T) {
	firstDest := "/tmp/dest/taken.txt"
	secondDest := "/tmp/dest/free.txt"

	resolveFn := func(_ context.Context, req resolver.Request) (resolver.Decision, error) {
		if req.Failure == nil {
			return resolver.Decision{Action: resolver.ActionMove, Destination: firstDest}, nil
		}
		return resolver.Decision{Action: resolver.ActionMove, Destination: secondDest}, nil
	}

	h := newHarness(t, resolveFn)
	h.mover.fn = func(_ context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
		if destination == firstDest {
			return failedHistory(entry.Path, destination, "destination already exists")
		}
		return successHistory(entry.Path, destination)
	}
	h.start()

	h.createFile("retry.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateDone, record.State)
	assert.Equal(t, secondDest, record.Destination)
	assert.Equal(t, 2, record.Attempts, "attempts accumulate across destinations")

	// The failure dialogue carried the first sequence's outcome.
	require.Equal(t, 2, h.resolver.callCount())
	failureReq := h.resolver.reqs[1]
	require.NotNil(t, failureReq.Failure)
	assert.Equal(t, firstDest, failureReq.Failure.Destination)
	assert.Equal(t, 1, failureReq.Failure.Attempts)
	assert.Equal(t, "destination already exists", failureReq.Failure.Reason)

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_GiveUpAfterFailure(t *testing.T) {
	resolveFn := func(_ context.Context, req resolver.Request) (resolver.Decision, error) {
		if req.Failure == nil {
			return resolver.Decision{Action: resolver.ActionMove, Destination: "/tmp/dest/x.txt"}, nil
		}
		return resolver.Decision{Action: resolver.ActionGiveUp}, nil
	}

	h := newHarness(t, resolveFn)
	h.mover.fn = func(_ context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
		return failedHistory(entry.Path, destination, "permission denied")
	}
	h.start()

	h.createFile("stuck.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateFailed, record.State)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, "permission denied", record.Error)

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_SkipAfterFailure(t *testing.T) {
	resolveFn := func(_ context.Context, req resolver.Request) (resolver.Decision, error) {
		if req.Failure == nil {
			return resolver.Decision{Action: resolver.ActionMove, Destination: "/tmp/dest/x.txt"}, nil
		}
		return resolver.Decision{Action: resolver.ActionSkip}, nil
	}

	h := newHarness(t, resolveFn)
	h.mover.fn = func(_ context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
		return failedHistory(entry.Path, destination, "disk full")
	}
	h.start()

	path := h.createFile("left.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateSkipped, record.State)
	assert.Equal(t, 1, record.Attempts)
	assert.FileExists(t, path)

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_HiddenEntriesNeverReachResolver(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	h.createFile(".hidden")

	// Give stabilization a chance to fire if filtering were broken.
	time.Sleep(3 * testQuiet)

	assert.Zero(t, h.resolver.callCount())
	assert.Zero(t, h.journal.recordCount())

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_RemovalCancelsStabilization(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	path := h.createFile("fleeting.txt")
	require.NoError(t, os.Remove(path))
	h.source.events <- watcher.Event{Type: watcher.EventRemoved, Path: path}

	time.Sleep(3 * testQuiet)

	assert.Zero(t, h.resolver.callCount())
	assert.Zero(t, h.journal.recordCount())

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_WriteToUntrackedPathIgnored(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	// The file predates the watch; only a write arrives.
	path := filepath.Join(h.root, "existing.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	h.source.events <- watcher.Event{Type: watcher.EventWritten, Path: path}

	time.Sleep(3 * testQuiet)

	assert.Zero(t, h.resolver.callCount())

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_RootGoneIsFatal(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	h.source.events <- watcher.Event{Type: watcher.EventRootGone, Path: h.root}

	err := h.waitStopped()
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrWatchRootUnavailable))
	assert.Equal(t, StateStopped, h.ctrl.State())
}

func TestController_CrossPathConcurrency(t *testing.T) {
	// Both dialogues must be open at once before either is released.
	gate := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)

	resolveFn := func(ctx context.Context, _ resolver.Request) (resolver.Decision, error) {
		arrived.Done()
		select {
		case <-gate:
			return resolver.Decision{Action: resolver.ActionSkip}, nil
		case <-ctx.Done():
			return resolver.Decision{}, ctx.Err()
		}
	}

	h := newHarness(t, resolveFn)
	h.start()

	h.createFile("a.txt")
	h.createFile("b.txt")

	waitDone := make(chan struct{})
	go func() {
		arrived.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(3 * time.Second):
		t.Fatal("entries for distinct paths did not process concurrently")
	}

	close(gate)
	h.waitRecord()
	h.waitRecord()

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())
}

func TestController_DrainFinishesInFlightEntry(t *testing.T) {
	gate := make(chan struct{})
	resolveFn := func(_ context.Context, req resolver.Request) (resolver.Decision, error) {
		<-gate
		return resolver.Decision{Action: resolver.ActionMove, Destination: "/tmp/dest/slow.txt"}, nil
	}

	h := newHarness(t, resolveFn)
	h.start()

	h.createFile("slow.txt")
	h.waitResolverCall()

	// Shutdown arrives while the dialogue is open.
	h.ctrl.Shutdown(domain.ShutdownBySignal)
	assert.Equal(t, StateDraining, h.ctrl.State())

	close(gate)

	record := h.waitRecord()
	assert.Equal(t, domain.StateDone, record.State)

	require.NoError(t, h.waitStopped())
}

func TestController_DrainDiscardsQueuedWork(t *testing.T) {
	gate := make(chan struct{})
	resolveFn := func(_ context.Context, _ resolver.Request) (resolver.Decision, error) {
		<-gate
		return resolver.Decision{Action: resolver.ActionSkip}, nil
	}

	h := newHarness(t, resolveFn)
	h.start()

	path := h.createFile("busy.txt")
	h.waitResolverCall()

	// The same path stabilizes again while its first entry is mid-dialogue,
	// queueing behind the active worker.
	h.source.events <- watcher.Event{Type: watcher.EventCreated, Path: path, Size: 4}
	require.Eventually(t, func() bool {
		h.ctrl.mu.Lock()
		defer h.ctrl.mu.Unlock()
		w, ok := h.ctrl.workers[path]
		return ok && len(w.queue) == 1
	}, 2*time.Second, 5*time.Millisecond, "second stabilization never queued")

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	close(gate)

	record := h.waitRecord()
	assert.Equal(t, domain.StateSkipped, record.State)

	require.NoError(t, h.waitStopped())
	assert.Equal(t, 1, h.journal.recordCount(), "queued work must not start after draining began")
}

func TestController_AbortFailsInFlightEntry(t *testing.T) {
	resolveFn := func(ctx context.Context, _ resolver.Request) (resolver.Decision, error) {
		<-ctx.Done()
		return resolver.Decision{}, ctx.Err()
	}

	h := newHarness(t, resolveFn)
	h.start()

	path := h.createFile("doomed.txt")
	h.waitResolverCall()

	h.ctrl.Abort()

	record := h.waitRecord()
	assert.Equal(t, domain.StateFailed, record.State)
	assert.Equal(t, "aborted by shutdown", record.Error)
	assert.Equal(t, path, record.Source)

	require.NoError(t, h.waitStopped())
	assert.Equal(t, StateStopped, h.ctrl.State())
}

func TestController_AbortCutsMoveRetries(t *testing.T) {
	h := newHarness(t, moveDecision("/tmp/dest/cut.txt", false))
	h.mover.fn = func(ctx context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
		// Simulate the mover observing the forced shutdown before its
		// first attempt could start.
		h.ctrl.Abort()
		<-ctx.Done()
		return &domain.MoveHistory{Source: entry.Path, Destination: destination}
	}
	h.start()

	h.createFile("cut.txt")

	record := h.waitRecord()
	assert.Equal(t, domain.StateFailed, record.State)
	assert.Equal(t, "aborted by shutdown", record.Error)
	assert.Zero(t, record.Attempts)

	require.NoError(t, h.waitStopped())
}

func TestController_EventsAfterDrainAreDiscarded(t *testing.T) {
	h := newHarness(t, skipDecision())
	h.start()

	h.ctrl.Shutdown(domain.ShutdownBySignal)
	require.NoError(t, h.waitStopped())

	// Nothing was watching anymore; no worker may have started.
	assert.Zero(t, h.resolver.callCount())
	assert.Zero(t, h.journal.recordCount())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
