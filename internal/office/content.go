package office

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StringList accepts both a JSON array of strings and a single string, since
// model output is inconsistent about which it produces.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// WordContent is the structured schema for Word documents.
type WordContent struct {
	Title      string     `json:"title,omitempty"`
	Paragraphs StringList `json:"paragraphs"`
	Table      [][]any    `json:"table,omitempty"`
}

// SheetContent is one worksheet of an Excel document.
type SheetContent struct {
	Name string  `json:"name"`
	Data [][]any `json:"data"`
}

// ExcelContent is the structured schema for Excel documents.
type ExcelContent struct {
	Sheets []SheetContent `json:"sheets"`
}

// SlideContent is one slide of a presentation.
type SlideContent struct {
	Title   string     `json:"title"`
	Content StringList `json:"content"`
}

// SlidesContent is the structured schema for presentations.
type SlidesContent struct {
	Slides []SlideContent `json:"slides"`
}

// DecodeWordContent parses raw as structured JSON, falling back to the free
// text format: blank-line separated paragraphs, with the first paragraph
// promoted to title when more than one follows.
func DecodeWordContent(raw string) WordContent {
	var c WordContent
	if err := json.Unmarshal([]byte(raw), &c); err == nil {
		if c.Title != "" || len(c.Paragraphs) > 0 || len(c.Table) > 0 {
			return c
		}
	}
	return parseWordText(raw)
}

func parseWordText(text string) WordContent {
	text = strings.TrimSpace(text)
	if text == "" {
		return WordContent{Paragraphs: StringList{"(empty document)"}}
	}

	var paragraphs []string
	for _, block := range splitBlocks(text) {
		paragraphs = append(paragraphs, strings.Join(block, " "))
	}
	if len(paragraphs) <= 1 {
		return WordContent{Paragraphs: StringList{text}}
	}
	return WordContent{Title: paragraphs[0], Paragraphs: StringList(paragraphs[1:])}
}

// DecodeExcelContent parses raw as structured JSON, falling back to the free
// text format: one row per line, cells separated by "|".
func DecodeExcelContent(raw string) ExcelContent {
	var c ExcelContent
	if err := json.Unmarshal([]byte(raw), &c); err == nil && len(c.Sheets) > 0 {
		return c
	}
	return parseExcelText(raw)
}

func parseExcelText(text string) ExcelContent {
	var data [][]any
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row []any
		if strings.Contains(line, "|") {
			for _, cell := range strings.Split(line, "|") {
				row = append(row, strings.TrimSpace(cell))
			}
		} else {
			row = []any{line}
		}
		data = append(data, row)
	}
	if len(data) == 0 {
		data = [][]any{{"(empty sheet)"}}
	}
	return ExcelContent{Sheets: []SheetContent{{Name: "Sheet1", Data: data}}}
}

var slideMarker = regexp.MustCompile(`(?i)\[slide\s*\d+\]`)

// DecodeSlideContent parses raw as structured JSON, falling back to the free
// text format: slides delimited by "[Slide N]" markers, or by blank lines
// when no markers are present. The first line of each slide is its title.
func DecodeSlideContent(raw string) SlidesContent {
	var c SlidesContent
	if err := json.Unmarshal([]byte(raw), &c); err == nil && len(c.Slides) > 0 {
		return c
	}
	return parseSlideText(raw)
}

func parseSlideText(text string) SlidesContent {
	text = strings.TrimSpace(text)
	if text == "" {
		return SlidesContent{Slides: []SlideContent{{Title: "Blank slide"}}}
	}

	if !slideMarker.MatchString(text) {
		return slidesFromBlocks(text)
	}

	var slides []SlideContent
	markers := slideMarker.FindAllStringIndex(text, -1)
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		slides = append(slides, slideFromLines(nonEmptyLines(body)))
	}
	if len(slides) == 0 {
		return SlidesContent{Slides: []SlideContent{{Title: "Content", Content: StringList{text}}}}
	}
	return SlidesContent{Slides: slides}
}

func slidesFromBlocks(text string) SlidesContent {
	var slides []SlideContent
	for _, block := range splitBlocks(text) {
		slides = append(slides, slideFromLines(block))
	}
	if len(slides) == 0 {
		return SlidesContent{Slides: []SlideContent{{Title: "Content", Content: StringList{text}}}}
	}
	return SlidesContent{Slides: slides}
}

func slideFromLines(lines []string) SlideContent {
	s := SlideContent{}
	if len(lines) > 0 {
		s.Title = lines[0]
		s.Content = StringList(lines[1:])
	}
	return s
}

// splitBlocks groups consecutive non-blank lines into blocks separated by
// blank lines.
func splitBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
