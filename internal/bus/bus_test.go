package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	q := New(4, testLogger())
	defer q.Close()

	q.Publish(&domain.MessageEvent{Platform: "test", SenderID: "u1", RawText: "hi"})

	select {
	case ev := <-q.Subscribe():
		if ev.RawText != "hi" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestResubmitDeliversInOrder(t *testing.T) {
	q := New(4, testLogger())
	defer q.Close()

	q.Publish(&domain.MessageEvent{RawText: "first"})
	if err := q.Resubmit(&domain.MessageEvent{RawText: "second", Synthesized: true}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	inbound := q.Subscribe()
	got := []*domain.MessageEvent{<-inbound, <-inbound}
	if got[0].RawText != "first" || got[1].RawText != "second" {
		t.Fatalf("unexpected order: %q, %q", got[0].RawText, got[1].RawText)
	}
	if !got[1].Synthesized {
		t.Fatal("synthesized flag must survive the queue")
	}
}

func TestResubmitAfterClose(t *testing.T) {
	q := New(4, testLogger())
	q.Close()

	if err := q.Resubmit(&domain.MessageEvent{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOutboundRouting(t *testing.T) {
	q := New(4, testLogger())
	defer q.Close()

	received := make(chan domain.OutboundMessage, 1)
	q.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		received <- msg
	})

	q.SendOutbound(domain.OutboundMessage{Platform: "telegram", ChatID: "42", Text: "done"})

	select {
	case msg := <-received:
		if msg.ChatID != "42" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not invoked")
	}

	// Unknown platform must not panic, just log.
	q.SendOutbound(domain.OutboundMessage{Platform: "nowhere"})
}
