package controller

import (
	"context"
	"os"

	"github.com/add0794/automated-file-mover/internal/domain"
	"github.com/add0794/automated-file-mover/internal/id"
	"github.com/add0794/automated-file-mover/internal/resolver"
)

// pathWorker owns all processing for one path. At most one exists per
// path at any time, so entries for the same path run in detection order
// while distinct paths proceed concurrently.
type pathWorker struct {
	path  string
	queue []domain.EntryKind
}

// enqueue is the debouncer's release callback. It hands the stabilized
// path to its worker, starting one if none is active.
func (c *Controller) enqueue(path string, isDir bool) {
	kind := domain.KindFile
	if isDir {
		kind = domain.KindDirectory
	}

	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		c.logger.Debug("stabilized entry discarded by shutdown", "path", path)
		return
	}
	if w, ok := c.workers[path]; ok {
		w.queue = append(w.queue, kind)
		c.mu.Unlock()
		return
	}
	w := &pathWorker{path: path, queue: []domain.EntryKind{kind}}
	c.workers[path] = w
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runWorker(w)
}

// runWorker drains the worker's queue one entry at a time. Once draining
// begins the entry in progress finishes but queued work is discarded.
func (c *Controller) runWorker(w *pathWorker) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if len(w.queue) == 0 {
			delete(c.workers, w.path)
			c.mu.Unlock()
			return
		}
		if c.state != StateRunning {
			discarded := len(w.queue)
			delete(c.workers, w.path)
			c.mu.Unlock()
			c.logger.Debug("queued work discarded by shutdown",
				"path", w.path,
				"count", discarded,
			)
			return
		}
		kind := w.queue[0]
		w.queue = w.queue[1:]
		c.mu.Unlock()

		c.processEntry(w.path, kind)
	}
}

// processEntry walks one entry from detection through its terminal state.
func (c *Controller) processEntry(path string, kind domain.EntryKind) {
	ctx := c.abortCtx

	// A path can stabilize again while its predecessor was still being
	// handled; by the time this turn comes the object may be gone.
	if _, err := os.Lstat(path); err != nil {
		c.logger.Debug("entry vanished before processing", "path", path)
		return
	}

	entry := domain.NewWatchEntry(id.MustGenerate("we"), path, kind)
	_ = entry.MarkResolving()
	c.logger.Info("entry detected", "path", path, "kind", kind)

	decision, err := c.resolver.Resolve(ctx, resolver.Request{Path: path, Kind: kind})
	if err != nil {
		c.finalizeInterrupted(entry, 0, err)
		return
	}

	switch decision.Action {
	case resolver.ActionMove:
		c.moveEntry(ctx, entry, decision)
	case resolver.ActionSkip:
		_ = entry.MarkSkipped()
		c.finalize(entry, "", 0, "", false)
	case resolver.ActionStop:
		_ = entry.MarkSkipped()
		c.finalize(entry, "", 0, "", false)
		c.logger.Info("stop requested from dialogue")
		c.Shutdown(domain.ShutdownByResolver)
	default:
		// Giving up is only meaningful after a failed sequence.
		_ = entry.MarkFailed()
		c.finalize(entry, "", 0, "unexpected resolver decision", false)
	}
}

// moveEntry runs attempt sequences until the entry lands, the user gives
// up, or shutdown intervenes. Each new destination restarts the mover's
// attempt budget; totalAttempts carries the overall count into the record.
func (c *Controller) moveEntry(ctx context.Context, entry *domain.WatchEntry, decision resolver.Decision) {
	_ = entry.MarkMoving()

	destination := decision.Destination
	notify := decision.Notify
	totalAttempts := 0

	for {
		history := c.mover.Move(ctx, entry, destination)
		totalAttempts += len(history.Attempts)

		if history.Succeeded() {
			_ = entry.MarkDone()
			c.finalize(entry, destination, totalAttempts, "", notify)
			return
		}

		reason := history.LastError()
		if ctx.Err() != nil || reason == "" {
			// Forced shutdown: either between attempts or before the
			// first one could start.
			_ = entry.MarkFailed()
			c.finalize(entry, destination, totalAttempts, "aborted by shutdown", false)
			return
		}
		if c.IsDraining() {
			_ = entry.MarkFailed()
			c.finalize(entry, destination, totalAttempts, reason, false)
			return
		}

		// The human hears about the failure and may supply a new
		// destination, which starts a fresh sequence.
		next, err := c.resolver.Resolve(ctx, resolver.Request{
			Path: entry.Path,
			Kind: entry.Kind,
			Failure: &resolver.Failure{
				Destination: destination,
				Attempts:    len(history.Attempts),
				Reason:      reason,
			},
		})
		if err != nil {
			c.finalizeInterrupted(entry, totalAttempts, err)
			return
		}

		switch next.Action {
		case resolver.ActionMove:
			destination = next.Destination
			notify = next.Notify
		case resolver.ActionSkip:
			_ = entry.MarkSkipped()
			c.finalize(entry, "", totalAttempts, "", false)
			return
		case resolver.ActionStop:
			_ = entry.MarkFailed()
			c.finalize(entry, destination, totalAttempts, reason, false)
			c.logger.Info("stop requested from dialogue")
			c.Shutdown(domain.ShutdownByResolver)
			return
		default: // ActionGiveUp
			_ = entry.MarkFailed()
			c.finalize(entry, destination, totalAttempts, reason, false)
			return
		}
	}
}

// finalizeInterrupted terminates an entry whose dialogue was cut off by a
// forced shutdown or a resolver failure.
func (c *Controller) finalizeInterrupted(entry *domain.WatchEntry, attempts int, cause error) {
	_ = entry.MarkFailed()

	reason := "aborted by shutdown"
	if c.abortCtx.Err() == nil {
		reason = cause.Error()
	}
	c.finalize(entry, "", attempts, reason, false)
}

// finalize lands the entry's terminal transition everywhere it must go:
// the lifecycle tally, the structured log, the journal, and the optional
// notification.
func (c *Controller) finalize(entry *domain.WatchEntry, destination string, attempts int, errText string, notify bool) {
	c.mu.Lock()
	c.tally[entry.State]++
	c.mu.Unlock()

	attrs := []any{
		"path", entry.Path,
		"state", entry.State,
		"attempts", attempts,
	}
	if destination != "" {
		attrs = append(attrs, "destination", destination)
	}
	if errText != "" {
		attrs = append(attrs, "error", errText)
	}
	c.logger.Info("entry finished", attrs...)

	record := domain.NewRecord(c.session, entry, destination, attempts, errText)

	// The journal write must survive shutdown, forced aborts included.
	if err := c.journal.AppendRecord(context.Background(), &record); err != nil {
		c.logger.Error("journal write failed", "path", entry.Path, "error", err)
	}

	if notify && c.notifier != nil && entry.State == domain.StateDone {
		c.notifyWG.Add(1)
		go func() {
			defer c.notifyWG.Done()
			c.notifier.Notify(c.abortCtx, &record)
		}()
	}
}
