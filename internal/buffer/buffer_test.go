package buffer

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fileEvent(session string, names ...string) *domain.MessageEvent {
	ev := &domain.MessageEvent{
		Platform:  "test",
		SenderID:  "u1",
		Session:   session,
		Timestamp: time.Now(),
	}
	for _, n := range names {
		ev.Segments = append(ev.Segments, &domain.FileSegment{Name: n})
	}
	return ev
}

func textEvent(session, text string) *domain.MessageEvent {
	return &domain.MessageEvent{
		Platform:  "test",
		SenderID:  "u1",
		Session:   session,
		Segments:  []domain.Segment{&domain.TextSegment{Text: text}},
		Timestamp: time.Now(),
	}
}

// collector records aggregates and the time each one arrived.
type collector struct {
	mu   sync.Mutex
	aggs []*Aggregate
	when []time.Time
	ch   chan *Aggregate
}

func newCollector() *collector {
	return &collector{ch: make(chan *Aggregate, 16)}
}

func (c *collector) handle(agg *Aggregate) {
	c.mu.Lock()
	c.aggs = append(c.aggs, agg)
	c.when = append(c.when, time.Now())
	c.mu.Unlock()
	c.ch <- agg
}

func (c *collector) wait(t *testing.T, timeout time.Duration) *Aggregate {
	t.Helper()
	select {
	case agg := <-c.ch:
		return agg
	case <-time.After(timeout):
		t.Fatalf("no aggregate within %v", timeout)
		return nil
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.aggs)
}

func TestDisabledBufferPassesEverything(t *testing.T) {
	b := New(Options{}, testLogger())
	done := newCollector()
	b.OnComplete(done.handle)

	if b.Add(fileEvent("s1", "invoice.pdf")) {
		t.Fatal("disabled buffer must not suppress events")
	}
	if b.IsBuffering(fileEvent("s1")) {
		t.Fatal("disabled buffer must not register entries")
	}
	time.Sleep(50 * time.Millisecond)
	if done.count() != 0 {
		t.Fatal("disabled buffer must not fire callbacks")
	}
}

func TestLoneFileFiresCompletion(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 120 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	start := time.Now()
	if !b.Add(fileEvent("s1", "invoice.pdf")) {
		t.Fatal("expected event to be buffered")
	}

	agg := done.wait(t, time.Second)
	elapsed := time.Since(start)

	if elapsed < 120*time.Millisecond {
		t.Fatalf("completion fired before full window: %v", elapsed)
	}
	if len(agg.Files) != 1 || agg.Files[0].Name != "invoice.pdf" {
		t.Fatalf("unexpected files: %+v", agg.Files)
	}
	if len(agg.Texts) != 0 {
		t.Fatalf("expected no texts, got %v", agg.Texts)
	}
	if !agg.HasFile {
		t.Fatal("aggregate should be marked as having a file")
	}
}

func TestTextThenFileEscalatesToFullWindow(t *testing.T) {
	const (
		observe = 80 * time.Millisecond
		full    = 200 * time.Millisecond
	)
	b := New(Options{ObserveWindow: observe, FullWindow: full}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	start := time.Now()
	b.Add(textEvent("s1", "please summarize"))

	// File lands inside the observe window.
	time.Sleep(40 * time.Millisecond)
	fileAt := time.Now()
	b.Add(fileEvent("s1", "report.docx"))

	agg := done.wait(t, time.Second)

	// Completion must not fire at the observe deadline; it is measured from
	// the moment the file arrived plus the full window.
	if since := time.Since(fileAt); since < full {
		t.Fatalf("completion fired %v after file, want >= %v", since, full)
	}
	if since := time.Since(start); since < 40*time.Millisecond+full {
		t.Fatalf("completion fired %v after start, escalation did not rearm the timer", since)
	}
	if len(agg.Files) != 1 || agg.Files[0].Name != "report.docx" {
		t.Fatalf("unexpected files: %+v", agg.Files)
	}
	if len(agg.Texts) != 1 || agg.Texts[0] != "please summarize" {
		t.Fatalf("unexpected texts: %v", agg.Texts)
	}
}

func TestObserveOnlyWithoutPassthroughDrops(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 120 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)
	// No passthrough handler configured.

	b.Add(textEvent("s1", "hello"))
	time.Sleep(120 * time.Millisecond)

	if done.count() != 0 {
		t.Fatal("completion must not fire for an entry that never saw a file")
	}
	if b.IsBuffering(textEvent("s1", "x")) {
		t.Fatal("entry must be unregistered after the observe window")
	}
}

func TestObserveOnlyPassthrough(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 120 * time.Millisecond}, testLogger())
	defer b.Close()
	pass := newCollector()
	done := newCollector()
	b.OnComplete(done.handle)
	b.OnPassthrough(pass.handle)

	b.Add(textEvent("s1", "hello"))
	b.Add(textEvent("s1", "world"))

	agg := pass.wait(t, time.Second)
	if agg.HasFile {
		t.Fatal("passthrough aggregate must not be marked as having a file")
	}
	if len(agg.Texts) != 2 || agg.Texts[0] != "hello" || agg.Texts[1] != "world" {
		t.Fatalf("unexpected texts: %v", agg.Texts)
	}
	if done.count() != 0 {
		t.Fatal("completion must not fire alongside passthrough")
	}
}

func TestDropTextOnlySuppressesPassthrough(t *testing.T) {
	b := New(Options{
		ObserveWindow: 40 * time.Millisecond,
		FullWindow:    120 * time.Millisecond,
		DropTextOnly:  true,
	}, testLogger())
	defer b.Close()
	pass := newCollector()
	b.OnPassthrough(pass.handle)

	b.Add(textEvent("s1", "hello"))
	time.Sleep(120 * time.Millisecond)

	if pass.count() != 0 {
		t.Fatal("dropTextOnly must suppress the passthrough handler")
	}
}

func TestArrivalOrderPreserved(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 150 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	b.Add(textEvent("s1", "first"))
	b.Add(fileEvent("s1", "a.docx"))
	b.Add(textEvent("s1", "second"))
	b.Add(fileEvent("s1", "b.xlsx", "c.pptx"))
	b.Add(textEvent("s1", "second")) // duplicates are kept

	agg := done.wait(t, time.Second)

	wantFiles := []string{"a.docx", "b.xlsx", "c.pptx"}
	if len(agg.Files) != len(wantFiles) {
		t.Fatalf("got %d files, want %d", len(agg.Files), len(wantFiles))
	}
	for i, want := range wantFiles {
		if agg.Files[i].Name != want {
			t.Fatalf("file %d = %q, want %q", i, agg.Files[i].Name, want)
		}
	}
	wantTexts := []string{"first", "second", "second"}
	if len(agg.Texts) != len(wantTexts) {
		t.Fatalf("got texts %v, want %v", agg.Texts, wantTexts)
	}
	for i, want := range wantTexts {
		if agg.Texts[i] != want {
			t.Fatalf("text %d = %q, want %q", i, agg.Texts[i], want)
		}
	}
}

func TestSecondFileDoesNotExtendWindow(t *testing.T) {
	const full = 150 * time.Millisecond
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: full}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	start := time.Now()
	b.Add(fileEvent("s1", "a.docx"))

	time.Sleep(60 * time.Millisecond)
	b.Add(fileEvent("s1", "b.docx"))

	agg := done.wait(t, time.Second)
	elapsed := time.Since(start)

	if elapsed < full {
		t.Fatalf("fired before the full window: %v", elapsed)
	}
	// Firing must be measured from the first file, not postponed by the second.
	if elapsed > full+80*time.Millisecond {
		t.Fatalf("second file extended the window: fired after %v", elapsed)
	}
	if len(agg.Files) != 2 {
		t.Fatalf("expected both files aggregated, got %d", len(agg.Files))
	}
}

func TestCancelPreventsDispatch(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 100 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	ev := fileEvent("s1", "a.docx")
	b.Add(ev)
	if !b.IsBuffering(ev) {
		t.Fatal("entry should be registered")
	}

	b.Cancel(ev)
	if b.IsBuffering(ev) {
		t.Fatal("entry must be unregistered immediately after Cancel")
	}

	time.Sleep(200 * time.Millisecond)
	if done.count() != 0 {
		t.Fatal("cancelled timer must never dispatch")
	}
}

func TestExactlyOneDispatchPerCycle(t *testing.T) {
	b := New(Options{ObserveWindow: 30 * time.Millisecond, FullWindow: 80 * time.Millisecond}, testLogger())
	defer b.Close()

	var fired atomic.Int32
	b.OnComplete(func(*Aggregate) { fired.Add(1) })
	b.OnPassthrough(func(*Aggregate) { fired.Add(1) })

	// Hammer one conversation from several goroutines while the window runs.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n == 0 {
				b.Add(fileEvent("s1", "a.docx"))
				return
			}
			b.Add(textEvent("s1", "msg"))
		}(i)
	}
	wg.Wait()

	time.Sleep(250 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", got)
	}
}

func TestIndependentConversations(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 100 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(done.handle)

	b.Add(fileEvent("s1", "a.docx"))
	b.Add(fileEvent("s2", "b.docx"))

	first := done.wait(t, time.Second)
	second := done.wait(t, time.Second)

	sessions := map[string]bool{
		first.Event.Session:  true,
		second.Event.Session: true,
	}
	if !sessions["s1"] || !sessions["s2"] {
		t.Fatalf("expected one dispatch per conversation, got %v", sessions)
	}
}

func TestHandlerPanicDoesNotCorruptBuffer(t *testing.T) {
	b := New(Options{ObserveWindow: 30 * time.Millisecond, FullWindow: 60 * time.Millisecond}, testLogger())
	defer b.Close()
	done := newCollector()
	b.OnComplete(func(agg *Aggregate) {
		done.handle(agg)
		panic("downstream failure")
	})

	b.Add(fileEvent("s1", "a.docx"))
	done.wait(t, time.Second)

	// The buffer must still accept and dispatch new cycles.
	b.Add(fileEvent("s1", "b.docx"))
	agg := done.wait(t, time.Second)
	if agg.Files[0].Name != "b.docx" {
		t.Fatalf("unexpected second cycle: %+v", agg.Files)
	}
}

func TestCloseCancelsAllPending(t *testing.T) {
	b := New(Options{ObserveWindow: 40 * time.Millisecond, FullWindow: 80 * time.Millisecond}, testLogger())
	done := newCollector()
	b.OnComplete(done.handle)

	b.Add(fileEvent("s1", "a.docx"))
	b.Add(fileEvent("s2", "b.docx"))
	b.Close()

	if b.Add(fileEvent("s3", "c.docx")) {
		t.Fatal("closed buffer must not accept events")
	}

	time.Sleep(150 * time.Millisecond)
	if done.count() != 0 {
		t.Fatal("Close must cancel all pending timers")
	}
}
