package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"promostaking/core/types"
)

const feedHistoryLimit = 2048

// Update is a sequenced event as delivered to feed subscribers.
type Update struct {
	Sequence uint64       `json:"sequence"`
	Cursor   string       `json:"cursor"`
	Event    *types.Event `json:"event"`
}

func cloneUpdate(update Update) Update {
	cloned := update
	cloned.Event = update.Event.Clone()
	return cloned
}

// Feed is an Emitter that sequences committed events, retains a bounded
// history and fans them out to live subscribers. Slow subscribers drop updates
// rather than blocking the emitter.
type Feed struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Update
	history []Update
}

// NewFeed constructs an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]chan Update)}
}

// Emit implements the Emitter interface. Events without a renderable payload
// are ignored.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}

	f.mu.Lock()
	f.seq++
	update := Update{
		Sequence: f.seq,
		Cursor:   strconv.FormatUint(f.seq, 10),
		Event:    payload.Event().Clone(),
	}
	f.history = append(f.history, update)
	if len(f.history) > feedHistoryLimit {
		excess := len(f.history) - feedHistoryLimit
		trimmed := make([]Update, feedHistoryLimit)
		copy(trimmed, f.history[excess:])
		f.history = trimmed
	}
	subscribers := make([]chan Update, 0, len(f.subs))
	for _, ch := range f.subs {
		subscribers = append(subscribers, ch)
	}
	f.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cloneUpdate(update):
		default:
		}
	}
}

// Subscribe registers a subscriber for updates after the supplied cursor. The
// returned backlog holds retained history newer than the cursor. The cancel
// function is idempotent and is also invoked when ctx is done.
func (f *Feed) Subscribe(ctx context.Context, cursor string) (<-chan Update, func(), []Update) {
	updates := make(chan Update, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]chan Update)
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	backlog := make([]Update, 0, len(f.history))
	for _, entry := range f.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneUpdate(entry))
		}
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			sub, ok := f.subs[id]
			if ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
