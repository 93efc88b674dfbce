package watcher

// coalescer buffers events that could not be delivered because the output
// channel was full. It keeps only the newest event per path so a burst of
// writes against one file collapses into a single delivery, while paths
// are flushed in the order they first backed up.
type coalescer struct {
	out   chan Event
	slots map[string]Event
	order []string
}

func newCoalescer(out chan Event) *coalescer {
	return &coalescer{
		out:   out,
		slots: make(map[string]Event),
	}
}

// offer attempts to deliver ev, draining any backlog first so per-path
// ordering is preserved. If the channel is still full the event is stashed,
// replacing any older stashed event for the same path.
func (c *coalescer) offer(ev Event) {
	c.flush()

	if len(c.slots) == 0 {
		select {
		case c.out <- ev:
			return
		default:
		}
	}

	c.stash(ev)
}

// flush delivers stashed events in arrival order until the channel fills
// up again or the backlog is empty.
func (c *coalescer) flush() {
	for len(c.order) > 0 {
		path := c.order[0]
		ev, ok := c.slots[path]
		if !ok {
			c.order = c.order[1:]
			continue
		}
		select {
		case c.out <- ev:
			delete(c.slots, path)
			c.order = c.order[1:]
		default:
			return
		}
	}
}

func (c *coalescer) stash(ev Event) {
	if _, exists := c.slots[ev.Path]; !exists {
		c.order = append(c.order, ev.Path)
	}
	c.slots[ev.Path] = ev
}

// pending reports how many paths currently have a stashed event.
func (c *coalescer) pending() int {
	return len(c.slots)
}
