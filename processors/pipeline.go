package processors

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lectureHall/config"
	"lectureHall/core"
	"lectureHall/storage"
)

// inflightRegistry tracks which videos have a pipeline run in progress.
// Check-and-insert is atomic: two concurrent triggers for the same video can
// never both pass.
type inflightRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{active: map[string]struct{}{}}
}

func (r *inflightRegistry) tryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[key]; busy {
		return false
	}
	r.active[key] = struct{}{}
	return true
}

func (r *inflightRegistry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

// ProcessingService owns the background pipeline: audio extraction,
// transcription, summary, suggestions and transcript indexing, one run per
// video at a time.
type ProcessingService struct {
	cfg         *config.Config
	dirs        config.DataDirs
	logs        *storage.LogStore
	subtitles   *storage.SubtitleStore
	summaries   *storage.SummaryStore
	suggestions *storage.SuggestionStore
	index       storage.VectorStore
	asr         ASRProvider
	llm         Completer
	inflight    *inflightRegistry
}

func NewProcessingService(
	cfg *config.Config,
	dirs config.DataDirs,
	logs *storage.LogStore,
	subtitles *storage.SubtitleStore,
	summaries *storage.SummaryStore,
	suggestions *storage.SuggestionStore,
	index storage.VectorStore,
	asr ASRProvider,
	llm Completer,
) *ProcessingService {
	return &ProcessingService{
		cfg:         cfg,
		dirs:        dirs,
		logs:        logs,
		subtitles:   subtitles,
		summaries:   summaries,
		suggestions: suggestions,
		index:       index,
		asr:         asr,
		llm:         llm,
		inflight:    newInflightRegistry(),
	}
}

// Queue triggers processing for a video and returns immediately. With
// force=false a video whose artifacts are all present is a no-op; force only
// skips that check, individual stages still skip artifacts that exist.
// A video already being processed is dropped silently, not queued.
func (p *ProcessingService) Queue(videoPath string, force bool) {
	if !force && !p.NeedsWork(videoPath) {
		return
	}
	key, err := filepath.Abs(videoPath)
	if err != nil {
		key = videoPath
	}
	if !p.inflight.tryAcquire(key) {
		return
	}
	go func() {
		defer p.inflight.release(key)
		p.process(videoPath)
	}()
}

// NeedsWork reports whether any of the four artifacts is still absent.
func (p *ProcessingService) NeedsWork(videoPath string) bool {
	name := filepath.Base(videoPath)
	paths := []string{
		AudioPathFor(p.dirs.Audio, name),
		p.subtitles.PathFor(name),
		p.summaries.PathFor(name),
		p.suggestions.PathFor(name),
	}
	for _, path := range paths {
		if !fileExists(path) {
			return true
		}
	}
	return false
}

// process runs the stages in order. Each stage is gated on its own artifact
// being absent, not on the previous stage's success: audio produced by an
// earlier run still unlocks transcription even if this run's extraction
// failed. Failures are logged and never abort the remaining stages.
func (p *ProcessingService) process(videoPath string) {
	name := filepath.Base(videoPath)
	audioPath := AudioPathFor(p.dirs.Audio, name)

	if !fileExists(audioPath) {
		p.logs.Append(name, core.NewLogEntry("info", "extract_audio"))
		if _, err := ExtractAudio(videoPath, p.dirs.Audio); err != nil {
			p.logs.Append(name, core.NewLogEntry("error", fmt.Sprintf("extract_audio_error: %v", err)))
		}
	}

	var segments []core.Segment
	if fileExists(audioPath) && !fileExists(p.subtitles.PathFor(name)) {
		p.logs.Append(name, core.NewLogEntry("info", "transcribe"))
		segs, err := p.asr.Transcribe(audioPath)
		switch {
		case err != nil:
			p.logs.Append(name, core.NewLogEntry("error", fmt.Sprintf("transcribe_error: %v", err)))
		case len(segs) > 0:
			segments = segs
			if err := p.subtitles.WriteSegments(name, segs); err != nil {
				p.logs.Append(name, core.NewLogEntry("error", fmt.Sprintf("transcribe_error: save segments: %v", err)))
			}
		}
	}
	if len(segments) == 0 && fileExists(p.subtitles.PathFor(name)) {
		segments = p.subtitles.ReadSegments(name)
	}

	fullText := core.FullText(segments)
	if fullText != "" && !fileExists(p.summaries.PathFor(name)) {
		if summary := Summarize(p.cfg, p.llm, p.logs.Append, name, fullText); summary != "" {
			if err := p.summaries.Write(name, summary); err != nil {
				p.logs.Append(name, core.NewLogEntry("error", fmt.Sprintf("summary_error: save: %v", err)))
			}
		}
	}

	if len(segments) > 0 && !fileExists(p.suggestions.PathFor(name)) {
		timecoded := core.TimecodedTranscript(segments)
		items := GenerateSuggestions(p.cfg, p.llm, p.logs.Append, name, timecoded, len(segments))
		if len(items) > 0 {
			if err := p.suggestions.WriteItems(name, items); err != nil {
				p.logs.Append(name, core.NewLogEntry("error", fmt.Sprintf("suggestions_error: save: %v", err)))
			}
		}
	}

	if len(segments) > 0 && p.index != nil {
		p.logs.Append(name, core.NewLogEntry("info", "index_segments"))
		p.index.Upsert(name, segments)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
