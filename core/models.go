package core

import (
	"fmt"
	"strings"
	"time"
)

// Segment is one timestamped span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SuggestionItem is a discussion question tied to a span of the lecture.
// Start and End are clock strings in HH:MM:SS.
type SuggestionItem struct {
	Text  string `json:"text"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Hit is one scored transcript match returned by the search store.
type Hit struct {
	Score float64 `json:"score"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// LogEntry is one line of a video's append-only processing log.
type LogEntry struct {
	Type     string `json:"type"`
	Time     string `json:"time"`
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

func NewLogEntry(kind, content string) LogEntry {
	return LogEntry{Type: kind, Time: Timestamp(), Content: content}
}

// Timestamp formats the wall clock the way log entries expect: second
// precision, no zone.
func Timestamp() string { return time.Now().Format("2006-01-02T15:04:05") }

// FormatClock renders a position in seconds as HH:MM:SS.
func FormatClock(sec float64) string {
	s := int(sec)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// FullText joins segment texts in order, space separated.
func FullText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// TimecodedTranscript renders segments as "[HH:MM:SS] text" lines, one per
// segment, in order. Segments with empty text are skipped.
func TimecodedTranscript(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", FormatClock(seg.Start), text))
	}
	return strings.Join(lines, "\n")
}

// TranscriptBefore joins the texts of all segments that start at or before
// position t, used to give the LLM the context the viewer has already seen.
func TranscriptBefore(segments []Segment, t float64) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Start > t {
			break
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
