package transcription

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Segment is one recognized span of speech. Times are seconds from the start
// of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FormatTimestamp renders seconds as an SRT timestamp (HH:MM:SS,mmm).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// RenderSRT builds the SubRip document for the given segments. Segments with
// empty text are dropped; numbering starts at 1 and stays contiguous.
func RenderSRT(segments []Segment) string {
	var blocks []string
	index := 1
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			index, FormatTimestamp(seg.Start), FormatTimestamp(seg.End), text))
		index++
	}
	return strings.Join(blocks, "\n")
}

// WriteSRT renders the segments and writes the document to path.
func WriteSRT(segments []Segment, path string) error {
	content := RenderSRT(segments)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrap(err, "writing srt file")
	}
	return nil
}
