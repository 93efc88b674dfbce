// Package mover relocates stabilized entries to their resolved
// destinations, applying a bounded retry policy with exponential backoff
// and falling back to copy-then-delete for cross-device moves.
package mover

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/add0794/automated-file-mover/internal/domain"
	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 8 * time.Second
)

// Config holds the mover's policy parameters.
type Config struct {
	// DestinationRoot bounds where entries may be placed. Destinations
	// outside this tree are rejected without an attempt on the filesystem.
	DestinationRoot string

	// WatchDir is the observed directory. Destinations inside it are
	// rejected, since landing there would re-trigger the pipeline.
	WatchDir string

	// MaxAttempts bounds the attempt sequence per destination.
	MaxAttempts int

	// BackoffBase is the delay before the second attempt; it doubles per
	// attempt up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Draining reports whether graceful shutdown has begun. Once it returns
	// true the attempt in flight still completes, but no further retry is
	// scheduled. Nil means never draining.
	Draining func() bool
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
}

// Mover performs relocations. It is safe for concurrent use across
// distinct entries; per-entry serialization is the caller's concern.
type Mover struct {
	cfg    Config
	logger *slog.Logger

	// Seams for tests: renameFn injects rename failures, sleepFn removes
	// real backoff waits.
	renameFn func(oldpath, newpath string) error
	sleepFn  func(ctx context.Context, d time.Duration) error
}

// New creates a mover with the given policy.
func New(logger *slog.Logger, cfg Config) *Mover {
	cfg.setDefaults()
	return &Mover{
		cfg:      cfg,
		logger:   logger,
		renameFn: os.Rename,
		sleepFn:  sleepContext,
	}
}

// Move relocates the entry to destination, retrying transient failures up
// to the configured attempt budget. Every attempt is recorded; the
// returned history is never nil and its final attempt decides the entry's
// fate. Cancellation of ctx stops the sequence between attempts, never
// mid-attempt.
func (m *Mover) Move(ctx context.Context, entry *domain.WatchEntry, destination string) *domain.MoveHistory {
	destination = filepath.Clean(destination)
	history := &domain.MoveHistory{
		Source:      entry.Path,
		Destination: destination,
	}

	if err := m.validate(destination); err != nil {
		m.record(history, err, time.Now(), 0)
		m.logger.Warn("move rejected",
			"source", entry.Path,
			"destination", destination,
			"error", err,
		)
		return history
	}

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			// Shutdown was forced before this attempt started.
			return history
		}

		start := time.Now()
		err := m.attemptOnce(entry.Path, destination)
		outcome := m.record(history, err, start, time.Since(start))

		switch outcome {
		case domain.OutcomeSuccess:
			m.logger.Info("entry moved",
				"source", entry.Path,
				"destination", destination,
				"attempts", attempt,
			)
			return history
		case domain.OutcomePermanentFailure:
			m.logger.Warn("move failed permanently",
				"source", entry.Path,
				"destination", destination,
				"attempt", attempt,
				"error", err,
			)
			return history
		}

		if attempt == m.cfg.MaxAttempts {
			m.logger.Warn("move failed, attempts exhausted",
				"source", entry.Path,
				"destination", destination,
				"attempts", attempt,
				"error", err,
			)
			return history
		}

		if m.cfg.Draining != nil && m.cfg.Draining() {
			m.logger.Warn("move retries stopped by shutdown",
				"source", entry.Path,
				"destination", destination,
				"attempts", attempt,
				"error", err,
			)
			return history
		}

		delay := m.backoffDelay(attempt)
		m.logger.Warn("move attempt failed, backing off",
			"source", entry.Path,
			"destination", destination,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := m.sleepFn(ctx, delay); err != nil {
			// Draining or aborted: no further attempts.
			return history
		}
	}

	return history
}

// validate rejects destinations the policy forbids before anything
// touches the filesystem.
func (m *Mover) validate(destination string) error {
	if !within(m.cfg.DestinationRoot, destination) {
		return domainerrors.PermanentMovef("destination %s escapes the permitted root %s", destination, m.cfg.DestinationRoot)
	}
	if within(m.cfg.WatchDir, destination) {
		return domainerrors.PermanentMovef("destination %s is inside the watched directory", destination)
	}
	if _, err := os.Lstat(destination); err == nil {
		return domainerrors.DestinationConflictf("destination %s already exists", destination)
	}
	return nil
}

// attemptOnce performs a single relocation attempt. A fresh conflict check
// runs each time since the destination can appear between attempts.
func (m *Mover) attemptOnce(source, destination string) error {
	if _, err := os.Lstat(destination); err == nil {
		return domainerrors.DestinationConflictf("destination %s already exists", destination)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("failed to create destination parents: %w", err)
	}

	err := m.renameFn(source, destination)
	if err == nil {
		return nil
	}

	if stderrors.Is(err, syscall.EXDEV) {
		return moveAcrossDevices(source, destination)
	}

	return err
}

// record classifies err, appends the attempt, and returns the outcome.
func (m *Mover) record(history *domain.MoveHistory, err error, start time.Time, elapsed time.Duration) domain.AttemptOutcome {
	outcome := classify(err)
	attempt := domain.MoveAttempt{
		Source:      history.Source,
		Destination: history.Destination,
		Outcome:     outcome,
		StartedAt:   start,
		Duration:    elapsed,
	}
	if err != nil {
		attempt.Error = err.Error()
	}
	history.Record(attempt)
	return outcome
}

// classify maps an attempt error onto the retry policy. Unknown errors
// default to transient; the attempt budget bounds the damage of guessing
// wrong, while misclassifying a recoverable hiccup as permanent would
// fail entries that one retry could have saved.
func classify(err error) domain.AttemptOutcome {
	if err == nil {
		return domain.OutcomeSuccess
	}

	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		if domainErr.Retryable() {
			return domain.OutcomeTransientFailure
		}
		return domain.OutcomePermanentFailure
	}

	if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, fs.ErrPermission) {
		return domain.OutcomePermanentFailure
	}

	for _, errno := range permanentErrnos {
		if stderrors.Is(err, errno) {
			return domain.OutcomePermanentFailure
		}
	}

	return domain.OutcomeTransientFailure
}

// permanentErrnos are conditions a retry with the same inputs cannot fix.
// ENOSPC is deliberately absent: space can free up between attempts.
var permanentErrnos = []syscall.Errno{
	syscall.EROFS,
	syscall.ENOTDIR,
	syscall.EISDIR,
	syscall.EINVAL,
	syscall.ENAMETOOLONG,
	syscall.ELOOP,
	syscall.ENOTEMPTY,
	syscall.EEXIST,
}

// backoffDelay returns the wait after the given attempt number: the base
// delay doubled per attempt, capped.
func (m *Mover) backoffDelay(attempt int) time.Duration {
	delay := m.cfg.BackoffBase << (attempt - 1)
	if delay > m.cfg.BackoffCap || delay <= 0 {
		delay = m.cfg.BackoffCap
	}
	return delay
}

// sleepContext waits out d or returns early with the context's error.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// within reports whether path falls inside root (or is root itself),
// judged lexically after cleaning.
func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
