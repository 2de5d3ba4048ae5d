package buffer

import (
	"strings"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

// Extract splits a message into its file attachments and non-empty trimmed
// text runs, in arrival order. Mentions, replies and any other markers are
// ignored. Absence of either kind yields a nil slice.
func Extract(ev *domain.MessageEvent) (files []*domain.FileSegment, texts []string) {
	for _, seg := range ev.Segments {
		switch s := seg.(type) {
		case *domain.FileSegment:
			files = append(files, s)
		case *domain.TextSegment:
			if t := strings.TrimSpace(s.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return files, texts
}
