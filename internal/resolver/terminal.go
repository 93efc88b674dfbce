package resolver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/add0794/automated-file-mover/internal/domain"
)

// Terminal is the interactive resolver. It prompts on out and reads
// answers from in, one dialogue at a time; concurrent entries queue for
// the human's attention rather than interleaving their prompts.
type Terminal struct {
	root  string
	out   io.Writer
	lines chan string
	errs  chan error
	mu    sync.Mutex
}

// NewTerminal creates a terminal resolver. Relative destination inputs are
// resolved against root. The reader goroutine lives for the lifetime of
// the process; EOF on in is treated as a stop instruction.
func NewTerminal(root string, in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		root:  root,
		out:   out,
		lines: make(chan string),
		errs:  make(chan error, 1),
	}

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			t.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			t.errs <- err
			return
		}
		t.errs <- io.EOF
	}()

	return t
}

// Resolve runs the dialogue for one entry and returns the decision.
func (t *Terminal) Resolve(ctx context.Context, req Request) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req.Failure != nil {
		return t.resolveAfterFailure(ctx, req)
	}
	return t.resolveFresh(ctx, req)
}

func (t *Terminal) resolveFresh(ctx context.Context, req Request) (Decision, error) {
	kind := "file"
	if req.Kind == domain.KindDirectory {
		kind = "folder"
	}
	fmt.Fprintf(t.out, "\nNew %s detected: %s\n", kind, filepath.Base(req.Path))

	return t.askDestination(ctx)
}

func (t *Terminal) resolveAfterFailure(ctx context.Context, req Request) (Decision, error) {
	fmt.Fprintf(t.out, "\nMoving %s to %s failed after %d attempt(s): %s\n",
		filepath.Base(req.Path), req.Failure.Destination, req.Failure.Attempts, req.Failure.Reason)
	fmt.Fprint(t.out, "Try a different destination? (y/n): ")

	answer, err := t.readLine(ctx)
	if err != nil {
		return t.decisionForReadError(err)
	}
	if !isYes(answer) {
		return Decision{Action: ActionGiveUp}, nil
	}

	return t.askDestination(ctx)
}

// askDestination prompts for a destination path and, if one is given, the
// notification choice.
func (t *Terminal) askDestination(ctx context.Context) (Decision, error) {
	fmt.Fprintf(t.out, "Where should it go? (path under %s, blank to skip, 'exit' to stop watching): ", t.root)

	answer, err := t.readLine(ctx)
	if err != nil {
		return t.decisionForReadError(err)
	}

	answer = strings.TrimSpace(answer)
	switch {
	case answer == "":
		return Decision{Action: ActionSkip}, nil
	case strings.EqualFold(answer, "exit"), strings.EqualFold(answer, "quit"):
		return Decision{Action: ActionStop}, nil
	}

	destination := answer
	if !filepath.IsAbs(destination) {
		destination = filepath.Join(t.root, destination)
	}

	fmt.Fprint(t.out, "Send a notification when done? (y/n): ")
	notifyAnswer, err := t.readLine(ctx)
	if err != nil {
		return t.decisionForReadError(err)
	}

	return Decision{
		Action:      ActionMove,
		Destination: destination,
		Notify:      isYes(notifyAnswer),
	}, nil
}

// readLine waits for the next input line, the reader failing, or ctx
// ending, whichever comes first.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-t.lines:
		return line, nil
	case err := <-t.errs:
		return "", err
	}
}

// decisionForReadError maps input loss onto a decision. A closed stdin
// means the human is gone, so watching should stop; a cancelled context
// propagates so the caller can tell shutdown from choice.
func (t *Terminal) decisionForReadError(err error) (Decision, error) {
	if err == io.EOF {
		return Decision{Action: ActionStop}, nil
	}
	return Decision{}, err
}

func isYes(answer string) bool {
	answer = strings.TrimSpace(answer)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}
