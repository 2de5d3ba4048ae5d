package buffer

import (
	"testing"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

func TestExtractSplitsFilesAndTexts(t *testing.T) {
	ev := &domain.MessageEvent{
		Segments: []domain.Segment{
			&domain.MentionSegment{Target: "bot"},
			&domain.TextSegment{Text: "  turn this into a spreadsheet  "},
			&domain.FileSegment{Name: "data.csv", Size: 128},
			&domain.ReplySegment{MessageID: "42"},
			&domain.TextSegment{Text: "\n\t"},
			&domain.FileSegment{Name: "notes.txt"},
		},
	}

	files, texts := Extract(ev)

	if len(files) != 2 || files[0].Name != "data.csv" || files[1].Name != "notes.txt" {
		t.Fatalf("unexpected files: %+v", files)
	}
	if len(texts) != 1 || texts[0] != "turn this into a spreadsheet" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}

func TestExtractEmptyMessage(t *testing.T) {
	files, texts := Extract(&domain.MessageEvent{})
	if files != nil || texts != nil {
		t.Fatalf("expected nil slices, got files=%v texts=%v", files, texts)
	}
}
