// Package transcript persists the final pane snapshot of a session.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/dispatcher/internal/pane"
)

// TimestampLayout is the timestamp format used in transcript file names.
const TimestampLayout = "20060102_150405"

// Writer writes transcripts into Dir. Dir is created on first use.
type Writer struct {
	Dir string
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Path returns the file a transcript for session would be written to at t.
func (w *Writer) Path(session string, t time.Time) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s.log", session, t.Format(TimestampLayout)))
}

// Write stores the raw, untrimmed snapshot and returns the file path.
func (w *Writer) Write(session string, snap pane.Snapshot) (string, error) {
	if w.Dir == "" {
		return "", fmt.Errorf("transcript directory is not set")
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create transcript directory: %w", err)
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	path := w.Path(session, now())

	if err := os.WriteFile(path, []byte(snap.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}
