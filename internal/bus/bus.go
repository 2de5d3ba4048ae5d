package bus

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

const publishTimeout = 10 * time.Second

// ErrClosed is returned by Resubmit after the queue has shut down.
var ErrClosed = errors.New("bus: queue closed")

// ErrFull is returned by Resubmit when the queue stays saturated past the
// publish timeout. Resubmission must never block a buffer timer forever.
var ErrFull = errors.New("bus: queue full")

// Queue is a Go-channel based event queue standing in for the host runtime's
// processing pipeline. Platform adapters publish inbound events; the plugin
// consumes them and recycles synthesized events through Resubmit.
type Queue struct {
	inbound  chan *domain.MessageEvent
	handlers map[string]func(domain.OutboundMessage)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a Queue with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *Queue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Queue{
		inbound:  make(chan *domain.MessageEvent, bufferSize),
		handlers: make(map[string]func(domain.OutboundMessage)),
		logger:   logger,
	}
}

// Publish blocks up to 10 seconds if the queue is full instead of dropping.
func (q *Queue) Publish(ev *domain.MessageEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("attempted to publish to closed queue")
		return
	}

	select {
	case q.inbound <- ev:
	default:
		q.logger.Warn("inbound queue full, waiting...", "platform", ev.Platform, "sender", ev.SenderID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case q.inbound <- ev:
			q.logger.Info("event delivered after wait", "platform", ev.Platform)
		case <-timer.C:
			q.logger.Error("event dropped: queue full for 10s",
				"platform", ev.Platform,
				"sender", ev.SenderID,
			)
		}
	}
}

// Resubmit places a synthesized event back on the queue. Unlike Publish it
// reports failure so the caller can log and move on.
func (q *Queue) Resubmit(ev *domain.MessageEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.inbound <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case q.inbound <- ev:
		return nil
	case <-timer.C:
		return ErrFull
	}
}

func (q *Queue) Subscribe() <-chan *domain.MessageEvent {
	return q.inbound
}

func (q *Queue) SendOutbound(msg domain.OutboundMessage) {
	q.mu.RLock()
	handler, ok := q.handlers[msg.Platform]
	q.mu.RUnlock()

	if !ok {
		q.logger.Warn("no handler registered for platform",
			"platform", msg.Platform,
		)
		return
	}

	handler(msg)
}

func (q *Queue) OnOutbound(platform string, handler func(domain.OutboundMessage)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[platform] = handler
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.inbound)
	}
}
