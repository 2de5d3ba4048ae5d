package buffer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

// Mobile clients can only send a file and its explanatory text as separate
// messages, so a burst of messages from one conversation has to be coalesced
// before the intent analysis sees it. The protocol is two-phase: every
// conversation starts a short observe window, and the first file escalates it
// once to the full window. Further files never extend it again, which bounds
// worst-case latency.

const (
	// DefaultObserveWindow is the short wait applied while no file has arrived.
	DefaultObserveWindow = 800 * time.Millisecond
	// DefaultFullWindow is the wait applied once a file has been seen, giving
	// the sender time to add explanatory text.
	DefaultFullWindow = 2500 * time.Millisecond
)

// Options tunes the coalescing windows. When both windows are zero or negative
// buffering is disabled and Add reports false for every event.
type Options struct {
	ObserveWindow time.Duration
	FullWindow    time.Duration
	// DropTextOnly suppresses the passthrough handler for entries that never
	// received a file; their accumulated texts are discarded with a debug log.
	DropTextOnly bool
}

// Aggregate is the popped, unshared snapshot of one buffering cycle handed to
// a handler. Handlers may mutate it freely without locking.
type Aggregate struct {
	Event   *domain.MessageEvent
	Files   []*domain.FileSegment
	Texts   []string
	HasFile bool
}

// Handler consumes a completed aggregate.
type Handler func(*Aggregate)

// entry is one in-flight aggregation window. The generation counter ties the
// outstanding timer to the entry state: a fired timer carrying a stale
// generation lost a cancel race and must exit silently.
type entry struct {
	event    *domain.MessageEvent
	files    []*domain.FileSegment
	texts    []string
	hasFile  bool
	extended bool
	timer    *time.Timer
	gen      uint64
}

// MessageBuffer coalesces per-conversation message bursts. One mutex guards
// the whole registry; timers fire on their own goroutines, re-acquire the
// lock to pop, and dispatch handlers outside it.
type MessageBuffer struct {
	mu            sync.Mutex
	opts          Options
	entries       map[domain.ConversationKey]*entry
	onComplete    Handler
	onPassthrough Handler
	logger        *slog.Logger
	closed        bool
}

func New(opts Options, logger *slog.Logger) *MessageBuffer {
	return &MessageBuffer{
		opts:    opts,
		entries: make(map[domain.ConversationKey]*entry),
		logger:  logger,
	}
}

// OnComplete registers the handler invoked when an aggregate that received at
// least one file completes. Called once at construction by the owning plugin.
func (b *MessageBuffer) OnComplete(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onComplete = h
}

// OnPassthrough registers the handler invoked when an observe-only aggregate
// (no file ever arrived) completes.
func (b *MessageBuffer) OnPassthrough(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPassthrough = h
}

// Enabled reports whether buffering is active at all.
func (b *MessageBuffer) Enabled() bool {
	return b.opts.ObserveWindow > 0 || b.opts.FullWindow > 0
}

// Add feeds an event into the buffer. It reports whether the caller must
// suppress normal propagation of the event: false means buffering is disabled
// (or shut down) and the event should flow on untouched.
func (b *MessageBuffer) Add(ev *domain.MessageEvent) bool {
	if !b.Enabled() {
		return false
	}

	files, texts := Extract(ev)
	key := ev.Key()
	hasFile := len(files) > 0

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if e, ok := b.entries[key]; ok {
		e.files = append(e.files, files...)
		e.texts = append(e.texts, texts...)

		if hasFile && !e.extended {
			// The critical transition: a bare-text observation escalates to
			// the full aggregation window the instant a file appears.
			e.hasFile = true
			e.extended = true
			e.gen++
			e.timer.Stop()
			e.timer = b.startTimer(key, e.gen, b.opts.FullWindow)
			b.logger.Info("file arrived, extending buffer window",
				"key", key.String(), "window", b.opts.FullWindow)
		} else {
			b.logger.Debug("appended to buffer",
				"key", key.String(), "files", len(files), "texts", len(texts))
		}
		return true
	}

	e := &entry{
		event:    ev,
		files:    files,
		texts:    texts,
		hasFile:  hasFile,
		extended: hasFile, // a file on the first message starts extended
	}

	wait := b.opts.ObserveWindow
	if hasFile {
		wait = b.opts.FullWindow
		b.logger.Info("file received, starting full buffer window",
			"key", key.String(), "window", wait)
	} else {
		b.logger.Debug("starting observe window",
			"key", key.String(), "window", wait)
	}

	e.timer = b.startTimer(key, e.gen, wait)
	b.entries[key] = e
	return true
}

// startTimer arms the wake-up for an entry. Caller holds the lock.
func (b *MessageBuffer) startTimer(key domain.ConversationKey, gen uint64, wait time.Duration) *time.Timer {
	return time.AfterFunc(wait, func() {
		b.expire(key, gen)
	})
}

// expire runs when a window elapses. A missing entry or a stale generation
// means the timer was cancelled or replaced concurrently; both are normal,
// silent exits.
func (b *MessageBuffer) expire(key domain.ConversationKey, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.entries, key)
	complete, passthrough := b.onComplete, b.onPassthrough
	dropTextOnly := b.opts.DropTextOnly
	b.mu.Unlock()

	agg := &Aggregate{Event: e.event, Files: e.files, Texts: e.texts, HasFile: e.hasFile}

	if e.hasFile {
		b.logger.Info("buffer complete",
			"key", key.String(), "files", len(e.files), "texts", len(e.texts))
		b.invoke(complete, agg, "complete")
		return
	}

	if dropTextOnly || passthrough == nil {
		b.logger.Debug("observe window elapsed without file, dropping",
			"key", key.String(), "texts", len(e.texts))
		return
	}
	b.logger.Debug("observe window elapsed without file, passing through",
		"key", key.String())
	b.invoke(passthrough, agg, "passthrough")
}

// invoke runs a handler, absorbing panics so a downstream failure cannot
// corrupt buffer state.
func (b *MessageBuffer) invoke(h Handler, agg *Aggregate, kind string) {
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("buffer handler panic", "handler", kind, "panic", r)
		}
	}()
	h(agg)
}

// IsBuffering reports whether an entry exists for the event's conversation.
// Advisory only: the answer can be stale by the time the caller acts on it.
func (b *MessageBuffer) IsBuffering(ev *domain.MessageEvent) bool {
	key := ev.Key()
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[key]
	return ok
}

// Cancel discards the event's in-flight entry, if any, guaranteeing its timer
// never fires.
func (b *MessageBuffer) Cancel(ev *domain.MessageEvent) {
	key := ev.Key()
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		e.gen++ // invalidate a timer that already fired past Stop
		e.timer.Stop()
		delete(b.entries, key)
		b.logger.Debug("buffer cancelled", "key", key.String())
	}
}

// Close cancels every pending entry and rejects further Adds.
func (b *MessageBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, e := range b.entries {
		e.gen++
		e.timer.Stop()
		delete(b.entries, key)
	}
}
