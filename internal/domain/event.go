package domain

import (
	"strings"
	"time"
)

// Segment is a closed variant type for the parts of an incoming message.
// Platform adapters produce exactly these four kinds; everything else a
// platform offers (stickers, polls, ...) is dropped at the adapter boundary.
type Segment interface {
	isSegment()
}

// FileSegment is a file attachment carried by a message.
type FileSegment struct {
	Name string
	Path string // local path once downloaded, empty until then
	URL  string // remote fetch URL if the platform provides one
	Size int64
}

// TextSegment is a run of plain text.
type TextSegment struct {
	Text string
}

// MentionSegment is an @-mention of a user.
type MentionSegment struct {
	Target string // platform user id of the mentioned user
}

// ReplySegment marks the message as a reply to an earlier message.
type ReplySegment struct {
	MessageID string
	Target    string // platform user id of the replied-to author
}

func (FileSegment) isSegment()    {}
func (TextSegment) isSegment()    {}
func (MentionSegment) isSegment() {}
func (ReplySegment) isSegment()   {}

// ConversationKey identifies one buffering context. At most one live buffer
// entry exists per key at any time.
type ConversationKey struct {
	Platform string
	SenderID string
	Session  string
}

func (k ConversationKey) String() string {
	return k.Platform + "/" + k.SenderID + "/" + k.Session
}

// MessageEvent is the unit of work delivered by the host queue. The buffer
// mutates it in place before resubmission; after the buffer pops an entry the
// event is unshared and may be modified without locking.
type MessageEvent struct {
	Platform  string
	SenderID  string
	SenderNym string // display name, informational only
	Session   string // unified conversation origin (chat id for telegram)
	SelfID    string // the bot's own platform id
	IsGroup   bool
	IsAdmin   bool

	Segments []Segment
	RawText  string // flattened display text

	// Synthesized marks an event already rebuilt by the buffer so it is not
	// buffered again on re-entry.
	Synthesized bool
	// Reentry counts how many times this logical message has been recycled
	// through the host queue.
	Reentry int

	Timestamp time.Time
}

// Key derives the conversation key, substituting "unknown" for missing parts
// so malformed events still coalesce deterministically.
func (e *MessageEvent) Key() ConversationKey {
	k := ConversationKey{Platform: e.Platform, SenderID: e.SenderID, Session: e.Session}
	if k.Platform == "" {
		k.Platform = "unknown"
	}
	if k.SenderID == "" {
		k.SenderID = "unknown"
	}
	if k.Session == "" {
		k.Session = "unknown"
	}
	return k
}

// PlainText flattens all text segments, trimmed and newline-joined.
func (e *MessageEvent) PlainText() string {
	var parts []string
	for _, seg := range e.Segments {
		if t, ok := seg.(*TextSegment); ok {
			if s := strings.TrimSpace(t.Text); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// HasFile reports whether any segment is a file attachment.
func (e *MessageEvent) HasFile() bool {
	for _, seg := range e.Segments {
		if _, ok := seg.(*FileSegment); ok {
			return true
		}
	}
	return false
}

// MentionsSelf reports whether the message @-mentions or replies to the bot.
func (e *MessageEvent) MentionsSelf() bool {
	if e.SelfID == "" {
		return false
	}
	for _, seg := range e.Segments {
		switch s := seg.(type) {
		case *MentionSegment:
			if s.Target == e.SelfID {
				return true
			}
		case *ReplySegment:
			if s.Target == e.SelfID {
				return true
			}
		}
	}
	return false
}

// SetContent replaces the message body with a single synthesized text segment,
// preserving non-text markers (mentions, replies) untouched.
func (e *MessageEvent) SetContent(text string) {
	e.RawText = text
	var kept []Segment
	for _, seg := range e.Segments {
		switch seg.(type) {
		case *MentionSegment, *ReplySegment:
			kept = append(kept, seg)
		}
	}
	e.Segments = append(kept, &TextSegment{Text: text})
}
