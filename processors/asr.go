package processors

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"

	"lectureHall/config"
	"lectureHall/core"
)

// ASRProvider turns an extracted audio file into subtitle segments.
type ASRProvider interface {
	Transcribe(audioPath string) ([]core.Segment, error)
}

// NewASRProvider picks the transcription implementation. Without an STT key
// transcription is simply disabled, which is not an error condition.
func NewASRProvider(cfg *config.Config) ASRProvider {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ASR")), "mock") {
		return MockASR{}
	}
	if !cfg.HasSTT() {
		return disabledASR{}
	}
	clientConfig := openai.DefaultConfig(cfg.STTKey())
	if base := cfg.STTBase(); base != "" {
		clientConfig.BaseURL = base
	}
	return &openAIASR{
		cli:      openai.NewClientWithConfig(clientConfig),
		model:    cfg.STTModel,
		language: cfg.Language,
	}
}

// disabledASR stands in when no credentials are configured.
type disabledASR struct{}

func (disabledASR) Transcribe(string) ([]core.Segment, error) { return nil, nil }

// MockASR produces placeholder segments from the audio duration, useful for
// wiring checks without a transcription backend.
type MockASR struct{}

func (MockASR) Transcribe(audioPath string) ([]core.Segment, error) {
	dur, err := ProbeDuration(audioPath)
	if err != nil {
		return nil, err
	}
	const segLen = 15.0
	segs := make([]core.Segment, 0)
	for start := 0.0; start < dur; start += segLen {
		end := start + segLen
		if end > dur {
			end = dur
		}
		segs = append(segs, core.Segment{Start: start, End: end, Text: fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", start, end)})
	}
	return segs, nil
}

type openAIASR struct {
	cli      *openai.Client
	model    string
	language string
}

// Transcribe asks for a timestamped transcript first. Services that only
// return plain text go through the fallback segmenter, which spreads the
// probed duration evenly across sentence-like units.
func (a *openAIASR) Transcribe(audioPath string) ([]core.Segment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fullText := ""
	resp, err := a.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: a.language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err == nil {
		segs := make([]core.Segment, 0, len(resp.Segments))
		for _, seg := range resp.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			segs = append(segs, core.Segment{Start: seg.Start, End: seg.End, Text: text})
		}
		if len(segs) > 0 {
			return segs, nil
		}
		fullText = strings.TrimSpace(resp.Text)
	}

	if fullText == "" {
		plain, err := a.cli.CreateTranscription(ctx, openai.AudioRequest{
			Model:    a.model,
			FilePath: audioPath,
		})
		if err != nil {
			return nil, err
		}
		fullText = strings.TrimSpace(plain.Text)
	}
	if fullText == "" {
		return nil, nil
	}
	dur, _ := ProbeDuration(audioPath)
	return FallbackSegments(fullText, dur), nil
}

// FallbackSegments distributes a plain-text transcript across the audio
// duration: one segment per sentence, equal spans, no gaps. With an unknown
// duration every segment degrades to a zero-length placeholder at 0.
func FallbackSegments(fullText string, dur float64) []core.Segment {
	fullText = strings.TrimSpace(fullText)
	if fullText == "" {
		return nil
	}
	sentences := splitSentences(fullText)
	if len(sentences) == 0 {
		sentences = []string{fullText}
	}
	segs := make([]core.Segment, 0, len(sentences))
	if dur <= 0 {
		for _, s := range sentences {
			segs = append(segs, core.Segment{Start: 0, End: 0, Text: s})
		}
		return segs
	}
	step := dur / float64(len(sentences))
	start := 0.0
	for i, s := range sentences {
		end := start + step
		if i == len(sentences)-1 || end > dur {
			end = dur
		}
		segs = append(segs, core.Segment{Start: start, End: end, Text: s})
		start = end
	}
	return segs
}

// splitSentences cuts text at sentence-ending punctuation followed by
// whitespace.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }
