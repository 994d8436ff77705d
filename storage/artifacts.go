package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lectureHall/core"
)

// FileRecord is one uploaded video as listed to the UI.
type FileRecord struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ---------------- VideoStore ----------------

type VideoStore struct {
	Dir        string
	allowedExt map[string]struct{}
}

func NewVideoStore(dir string, allowedExtensions []string) *VideoStore {
	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &VideoStore{Dir: dir, allowedExt: exts}
}

func (s *VideoStore) Allowed(name string) bool {
	_, ok := s.allowedExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Sanitize strips path components and unsafe characters from an uploaded
// filename. It returns an error for empty names and disallowed extensions.
func (s *VideoStore) Sanitize(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name")
	}
	if !s.Allowed(name) {
		return "", fmt.Errorf("unsupported file type")
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	var b strings.Builder
	for _, ch := range base {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case strings.ContainsRune(" ._()-", ch):
			b.WriteRune(ch)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		safe = "video"
	}
	return safe + strings.ToLower(ext), nil
}

// Save writes an uploaded file under a sanitized name, appending a counter
// when the name is already taken, and returns the stored name.
func (s *VideoStore) Save(r io.Reader, originalName string) (string, error) {
	name, err := s.Sanitize(originalName)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	savePath := filepath.Join(s.Dir, name)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(savePath); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s_%d%s", base, counter, ext)
		savePath = filepath.Join(s.Dir, name)
	}
	f, err := os.Create(savePath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(savePath)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func (s *VideoStore) PathFor(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// List returns the stored videos, newest first.
func (s *VideoStore) List() []FileRecord {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil
	}
	type rec struct {
		name  string
		mtime time.Time
	}
	recs := make([]rec, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !s.Allowed(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		recs = append(recs, rec{name: e.Name(), mtime: info.ModTime()})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].mtime.After(recs[j].mtime) })
	out := make([]FileRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, FileRecord{Name: r.name, URL: "/video/" + r.name})
	}
	return out
}

// DeleteRelated removes the given paths, collecting the basenames of the
// ones that existed and any errors hit along the way.
func (s *VideoStore) DeleteRelated(paths []string) (deleted []string, errs []string) {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		deleted = append(deleted, filepath.Base(path))
	}
	return deleted, errs
}

// ---------------- SubtitleStore ----------------

type SubtitleStore struct {
	Dir string
}

func NewSubtitleStore(dir string) *SubtitleStore { return &SubtitleStore{Dir: dir} }

func (s *SubtitleStore) PathFor(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name)+".json")
}

// ReadSegments returns the stored segments, or an empty slice when the
// artifact does not exist or cannot be parsed.
func (s *SubtitleStore) ReadSegments(name string) []core.Segment {
	data, err := os.ReadFile(s.PathFor(name))
	if err != nil {
		return nil
	}
	var doc struct {
		Segments []core.Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Segments
}

// WriteSegments stores the segments in a single write so a reader never
// observes a partially written artifact.
func (s *SubtitleStore) WriteSegments(name string, segments []core.Segment) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(map[string][]core.Segment{"segments": segments})
	if err != nil {
		return err
	}
	return os.WriteFile(s.PathFor(name), data, 0644)
}

// ---------------- SummaryStore ----------------

type SummaryStore struct {
	Dir string
}

func NewSummaryStore(dir string) *SummaryStore { return &SummaryStore{Dir: dir} }

func (s *SummaryStore) PathFor(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name)+".txt")
}

func (s *SummaryStore) Read(name string) string {
	data, err := os.ReadFile(s.PathFor(name))
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *SummaryStore) Write(name, content string) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.PathFor(name), []byte(content), 0644)
}

// ---------------- SuggestionStore ----------------

type SuggestionStore struct {
	Dir string
}

func NewSuggestionStore(dir string) *SuggestionStore { return &SuggestionStore{Dir: dir} }

func (s *SuggestionStore) PathFor(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name)+".json")
}

func (s *SuggestionStore) ReadItems(name string) []core.SuggestionItem {
	data, err := os.ReadFile(s.PathFor(name))
	if err != nil {
		return nil
	}
	var doc struct {
		Items []core.SuggestionItem `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Items
}

func (s *SuggestionStore) WriteItems(name string, items []core.SuggestionItem) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(map[string][]core.SuggestionItem{"items": items})
	if err != nil {
		return err
	}
	return os.WriteFile(s.PathFor(name), data, 0644)
}

// ---------------- LogStore ----------------

// LogStore keeps one append-only NDJSON log per video. Append never fails
// the caller: a processing stage must not die because its log line did.
type LogStore struct {
	Dir string
}

func NewLogStore(dir string) *LogStore { return &LogStore{Dir: dir} }

func (s *LogStore) PathFor(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name)+".log")
}

func (s *LogStore) Append(name string, entry core.LogEntry) {
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.Dir, 0755); err == nil {
		f, err := os.OpenFile(s.PathFor(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = f.Write(append(line, '\n'))
			_ = f.Close()
		}
	}
	// Mirror to the process log so operators see stage events without
	// polling artifact files.
	if strings.EqualFold(entry.Type, "error") {
		log.Printf("[%s] ERROR %s", filepath.Base(name), line)
	} else {
		log.Printf("[%s] %s", filepath.Base(name), line)
	}
}

// ReadEntries returns the log in append order, skipping unparseable lines.
func (s *LogStore) ReadEntries(name string) []core.LogEntry {
	data, err := os.ReadFile(s.PathFor(name))
	if err != nil {
		return nil
	}
	var entries []core.LogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry core.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *LogStore) Clear(name string) error {
	err := os.Remove(s.PathFor(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ---------------- FrameStore ----------------

// FrameStore persists player snapshots sent with explain-frame requests.
type FrameStore struct {
	Dir string
}

func NewFrameStore(dir string) *FrameStore { return &FrameStore{Dir: dir} }

// SaveDataURL decodes a data-URL image and stores it under the video's
// frame directory, returning the path relative to the store root. It
// returns "" for malformed input.
func (s *FrameStore) SaveDataURL(videoName, dataURL string) string {
	_, b64, found := strings.Cut(dataURL, ",")
	if !found {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(videoName), filepath.Ext(videoName))
	subdir := filepath.Join(s.Dir, base)
	if err := os.MkdirAll(subdir, 0755); err != nil {
		return ""
	}
	fileName := fmt.Sprintf("frame-%s-%s.png", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(subdir, fileName)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return ""
	}
	rel, err := filepath.Rel(s.Dir, path)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Resolve maps a stored relative path back to an absolute one, rejecting
// anything that escapes the store root.
func (s *FrameStore) Resolve(relPath string) (string, error) {
	base, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(s.Dir, relPath))
	if err != nil {
		return "", err
	}
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path")
	}
	return full, nil
}
