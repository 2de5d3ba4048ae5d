package office

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Sanitize strips characters that are unsafe in filenames, keeping letters,
// digits, spaces, dashes, underscores and dots. An empty result gets a
// timestamped placeholder name.
func Sanitize(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" -_.", r) {
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" || strings.Trim(name, ".") == "" {
		name = "file_" + time.Now().Format("20060102_150405")
	}
	return name
}

// UniquePath joins dir and filename, appending a timestamp before the
// extension when a file with that name already exists.
func UniquePath(dir, filename string) string {
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		return path
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(dir, base+"_"+stamp+ext)
}

// FormatFileSize renders a byte count for user-facing messages.
func FormatFileSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(1024*1024*1024))
	}
}
