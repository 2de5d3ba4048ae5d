package domain

// EventQueue is the host-owned processing queue. The plugin consumes events
// from Subscribe and feeds synthesized events back through Resubmit.
type EventQueue interface {
	Publish(ev *MessageEvent)
	// Resubmit places an already-processed event back on the queue for normal
	// downstream handling. Returns an error when the queue is closed or full.
	Resubmit(ev *MessageEvent) error
	Subscribe() <-chan *MessageEvent
	SendOutbound(msg OutboundMessage)
	OnOutbound(platform string, handler func(OutboundMessage))
	Close()
}

// OutboundMessage is a reply shipped back through a platform adapter.
type OutboundMessage struct {
	Platform string
	ChatID   string
	Text     string
	// Files are local paths of generated documents to attach.
	Files []string
}
