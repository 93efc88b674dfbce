package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescer_DeliversDirectly(t *testing.T) {
	out := make(chan Event, 2)
	c := newCoalescer(out)

	c.offer(Event{Type: EventCreated, Path: "/watch/a"})
	c.offer(Event{Type: EventCreated, Path: "/watch/b"})

	require.Len(t, out, 2)
	assert.Equal(t, "/watch/a", (<-out).Path)
	assert.Equal(t, "/watch/b", (<-out).Path)
	assert.Zero(t, c.pending())
}

func TestCoalescer_StashesWhenFull(t *testing.T) {
	out := make(chan Event, 1)
	c := newCoalescer(out)

	c.offer(Event{Type: EventCreated, Path: "/watch/a"})
	c.offer(Event{Type: EventCreated, Path: "/watch/b"})

	assert.Len(t, out, 1)
	assert.Equal(t, 1, c.pending())
}

func TestCoalescer_NewestWinsPerPath(t *testing.T) {
	out := make(chan Event, 1)
	c := newCoalescer(out)

	c.offer(Event{Type: EventCreated, Path: "/watch/a"})

	// Channel is now full; both land in the stash for the same path.
	c.offer(Event{Type: EventCreated, Path: "/watch/b", Size: 1})
	c.offer(Event{Type: EventWritten, Path: "/watch/b", Size: 2})

	assert.Equal(t, 1, c.pending(), "same path should occupy one slot")

	<-out
	c.flush()

	require.Len(t, out, 1)
	got := <-out
	assert.Equal(t, EventWritten, got.Type)
	assert.Equal(t, int64(2), got.Size)
}

func TestCoalescer_FlushPreservesArrivalOrder(t *testing.T) {
	out := make(chan Event, 1)
	c := newCoalescer(out)

	c.offer(Event{Type: EventCreated, Path: "/watch/first"})
	c.offer(Event{Type: EventCreated, Path: "/watch/second"})
	c.offer(Event{Type: EventCreated, Path: "/watch/third"})

	// Drain and flush repeatedly; stashed paths must come out in the
	// order they first backed up.
	var order []string
	order = append(order, (<-out).Path)
	c.flush()
	order = append(order, (<-out).Path)
	c.flush()
	order = append(order, (<-out).Path)

	assert.Equal(t, []string{"/watch/first", "/watch/second", "/watch/third"}, order)
	assert.Zero(t, c.pending())
}

func TestCoalescer_BacklogBlocksDirectSend(t *testing.T) {
	out := make(chan Event, 2)
	c := newCoalescer(out)

	// Fill the channel and force a stash for path a.
	c.offer(Event{Type: EventCreated, Path: "/watch/x"})
	c.offer(Event{Type: EventCreated, Path: "/watch/y"})
	c.offer(Event{Type: EventCreated, Path: "/watch/a", Size: 1})
	require.Equal(t, 1, c.pending())

	// Free one slot, then offer a later event for path a. The freed slot
	// goes to the stashed earlier event; the new one queues behind it
	// instead of overtaking via the direct send path.
	<-out
	c.offer(Event{Type: EventWritten, Path: "/watch/a", Size: 2})

	<-out // y
	first := <-out
	assert.Equal(t, "/watch/a", first.Path)
	assert.Equal(t, EventCreated, first.Type, "earlier event must be delivered first")
	assert.Equal(t, int64(1), first.Size)

	require.Equal(t, 1, c.pending())
	c.flush()
	second := <-out
	assert.Equal(t, EventWritten, second.Type)
	assert.Equal(t, int64(2), second.Size)
}
