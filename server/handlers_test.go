package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"lectureHall/config"
	"lectureHall/core"
	"lectureHall/processors"
	"lectureHall/storage"
)

type stubCompleter struct {
	answer string
	calls  int
}

func (c *stubCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	c.calls++
	return c.answer, nil
}

type noASR struct{}

func (noASR) Transcribe(string) ([]core.Segment, error) { return nil, nil }

func newTestDeps(t *testing.T, apiKey string, llm processors.Completer) Deps {
	t.Helper()
	dirs, err := config.EnsureDataDirs(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create data dirs: %v", err)
	}
	cfg := &config.Config{
		APIKey:    apiKey,
		ChatModel: "test-model",
		Suggestions: config.SuggestionConfig{
			MinDurationSec:  60,
			MinWords:        3,
			MaxWords:        6,
			MinCountDivider: 20,
			MinCountExtra:   10,
		},
	}
	d := Deps{
		Cfg:         cfg,
		Dirs:        dirs,
		Videos:      storage.NewVideoStore(dirs.Video, []string{".mp4"}),
		Subtitles:   storage.NewSubtitleStore(dirs.Subtitles),
		Summaries:   storage.NewSummaryStore(dirs.Summaries),
		Suggestions: storage.NewSuggestionStore(dirs.Suggestions),
		Logs:        storage.NewLogStore(dirs.Logs),
		Frames:      storage.NewFrameStore(dirs.Frames),
		Index:       storage.NewMemoryVectorStore(),
		LLM:         llm,
	}
	d.Processor = processors.NewProcessingService(
		cfg, dirs, d.Logs, d.Subtitles, d.Summaries, d.Suggestions, d.Index, noASR{}, llm,
	)
	return d
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestListVideosEmpty(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	rec := doJSON(t, NewRouter(d), http.MethodGet, "/videos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("Expected empty array, got %q", got)
	}
}

func TestUploadVideo(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "lecture.mp4")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte("video bytes")); err != nil {
		t.Fatalf("Failed to write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	NewRouter(d).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["name"] != "lecture.mp4" || resp["url"] != "/video/lecture.mp4" {
		t.Errorf("Unexpected response: %v", resp)
	}
	if _, err := os.Stat(d.Videos.PathFor("lecture.mp4")); err != nil {
		t.Errorf("Uploaded file not stored: %v", err)
	}
}

func TestUploadRejectsBadRequests(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	rec := doJSON(t, NewRouter(d), http.MethodPost, "/upload", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without multipart body, got %d", rec.Code)
	}
}

func TestEnsureProcessed(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	router := NewRouter(d)

	rec := doJSON(t, router, http.MethodPost, "/api/ensure_processed", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without name, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/ensure_processed", map[string]string{"name": "ghost.mp4"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown video, got %d", rec.Code)
	}

	// A fully processed video is still answered with "queued"; the pipeline
	// decides there is nothing to do.
	name := "done.mp4"
	if err := os.WriteFile(d.Videos.PathFor(name), []byte("v"), 0644); err != nil {
		t.Fatalf("Failed to place video: %v", err)
	}
	if err := os.WriteFile(processors.AudioPathFor(d.Dirs.Audio, name), []byte("a"), 0644); err != nil {
		t.Fatalf("Failed to place audio: %v", err)
	}
	if err := d.Subtitles.WriteSegments(name, []core.Segment{{End: 1, Text: "x"}}); err != nil {
		t.Fatalf("Failed to write segments: %v", err)
	}
	if err := d.Summaries.Write(name, "s"); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}
	if err := d.Suggestions.WriteItems(name, []core.SuggestionItem{{Text: "q", Start: "00:00:00", End: "00:01:00"}}); err != nil {
		t.Fatalf("Failed to write suggestions: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/ensure_processed", map[string]string{"name": name})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "queued" {
		t.Errorf("Expected queued status, got %v", resp)
	}
}

func TestServeSubtitlesAndSummary(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	router := NewRouter(d)

	if err := d.Subtitles.WriteSegments("lec.mp4", []core.Segment{{Start: 1, End: 2, Text: "hi"}}); err != nil {
		t.Fatalf("Failed to write segments: %v", err)
	}
	if err := d.Summaries.Write("lec.mp4", "short summary"); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/subtitles/lec.mp4.json", nil)
	var subs struct {
		Segments []core.Segment `json:"segments"`
	}
	decodeBody(t, rec, &subs)
	if len(subs.Segments) != 1 || subs.Segments[0].Text != "hi" {
		t.Errorf("Unexpected segments: %+v", subs.Segments)
	}

	// The same artifact is reachable without the .json suffix.
	rec = doJSON(t, router, http.MethodGet, "/subtitles/lec.mp4", nil)
	decodeBody(t, rec, &subs)
	if len(subs.Segments) != 1 {
		t.Errorf("Expected suffixless read to work, got %+v", subs.Segments)
	}

	rec = doJSON(t, router, http.MethodGet, "/summary/lec.mp4", nil)
	var sum map[string]string
	decodeBody(t, rec, &sum)
	if sum["text"] != "short summary" {
		t.Errorf("Unexpected summary response: %v", sum)
	}

	// Missing artifacts read as empty, never as errors.
	rec = doJSON(t, router, http.MethodGet, "/subtitles/ghost.mp4", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for missing subtitles, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/summary/ghost.mp4", nil)
	decodeBody(t, rec, &sum)
	if sum["text"] != "" {
		t.Errorf("Expected empty summary, got %v", sum)
	}
}

func TestGetSuggestionsOnDemand(t *testing.T) {
	llm := &stubCompleter{answer: `[{"text":"What was covered?","start":"00:00:00","end":"00:01:00"}]`}
	d := newTestDeps(t, "sk-test", llm)
	router := NewRouter(d)

	if err := d.Subtitles.WriteSegments("lec.mp4", []core.Segment{{Start: 0, End: 10, Text: "content"}}); err != nil {
		t.Fatalf("Failed to write segments: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/suggestions/lec.mp4", nil)
	var resp struct {
		Items []core.SuggestionItem `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Text != "What was covered?" {
		t.Fatalf("Unexpected items: %+v", resp.Items)
	}
	if llm.calls != 1 {
		t.Errorf("Expected 1 LLM call, got %d", llm.calls)
	}

	// The generated set is persisted: a second read must not call the LLM.
	rec = doJSON(t, router, http.MethodGet, "/suggestions/lec.mp4", nil)
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 1 {
		t.Errorf("Expected persisted items, got %+v", resp.Items)
	}
	if llm.calls != 1 {
		t.Errorf("Expected no further LLM calls, got %d", llm.calls)
	}
}

func TestGetSuggestionsWithoutSubtitles(t *testing.T) {
	d := newTestDeps(t, "sk-test", &stubCompleter{})
	rec := doJSON(t, NewRouter(d), http.MethodGet, "/suggestions/ghost.mp4", nil)
	var resp struct {
		Items []core.SuggestionItem `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 0 {
		t.Errorf("Expected empty items, got %+v", resp.Items)
	}
}

func TestDeleteVideoRetainsSummaryAndLog(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	name := "lec.mp4"
	if err := os.WriteFile(d.Videos.PathFor(name), []byte("v"), 0644); err != nil {
		t.Fatalf("Failed to place video: %v", err)
	}
	if err := os.WriteFile(processors.AudioPathFor(d.Dirs.Audio, name), []byte("a"), 0644); err != nil {
		t.Fatalf("Failed to place audio: %v", err)
	}
	if err := d.Subtitles.WriteSegments(name, []core.Segment{{Text: "x"}}); err != nil {
		t.Fatalf("Failed to write segments: %v", err)
	}
	if err := d.Suggestions.WriteItems(name, []core.SuggestionItem{{Text: "q", Start: "a", End: "b"}}); err != nil {
		t.Fatalf("Failed to write suggestions: %v", err)
	}
	if err := d.Summaries.Write(name, "keep me"); err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}
	d.Logs.Append(name, core.NewLogEntry("info", "keep me too"))

	rec := doJSON(t, NewRouter(d), http.MethodDelete, "/video/"+name, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Deleted []string `json:"deleted"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Deleted) != 4 {
		t.Errorf("Expected 4 deleted artifacts, got %v", resp.Deleted)
	}

	for _, path := range []string{
		d.Videos.PathFor(name),
		processors.AudioPathFor(d.Dirs.Audio, name),
		d.Subtitles.PathFor(name),
		d.Suggestions.PathFor(name),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be deleted", path)
		}
	}
	if got := d.Summaries.Read(name); got != "keep me" {
		t.Errorf("Summary should survive deletion, got %q", got)
	}
	if entries := d.Logs.ReadEntries(name); len(entries) != 1 {
		t.Errorf("Log should survive deletion, got %d entries", len(entries))
	}
}

func TestLogsEndpoints(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	router := NewRouter(d)
	d.Logs.Append("lec.mp4", core.NewLogEntry("info", "extract_audio"))

	rec := doJSON(t, router, http.MethodGet, "/logs/lec.mp4", nil)
	var resp struct {
		Entries []core.LogEntry `json:"entries"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].Content != "extract_audio" {
		t.Errorf("Unexpected entries: %+v", resp.Entries)
	}

	rec = doJSON(t, router, http.MethodDelete, "/logs/lec.mp4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 clearing logs, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/logs/lec.mp4", nil)
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 0 {
		t.Errorf("Expected no entries after clear, got %+v", resp.Entries)
	}
}

func TestChatWithoutCredentials(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	rec := doJSON(t, NewRouter(d), http.MethodPost, "/api/chat", map[string]any{
		"name": "lec.mp4", "question": "What is this about?",
	})
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["answer"] != "LLM is not configured" {
		t.Errorf("Unexpected answer: %v", resp)
	}
}

func TestChatAnswersAndLogs(t *testing.T) {
	llm := &stubCompleter{answer: "It is about limits."}
	d := newTestDeps(t, "sk-test", llm)
	if err := d.Subtitles.WriteSegments("lec.mp4", []core.Segment{{Start: 0, End: 10, Text: "Limits intro."}}); err != nil {
		t.Fatalf("Failed to write segments: %v", err)
	}

	rec := doJSON(t, NewRouter(d), http.MethodPost, "/api/chat", map[string]any{
		"name":        "lec.mp4",
		"currentTime": 30.0,
		"question":    "What is this about?",
		"dialog": []map[string]string{
			{"role": "student", "text": "What is this about?"},
		},
	})
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["answer"] != "It is about limits." {
		t.Fatalf("Unexpected answer: %v", resp)
	}

	entries := d.Logs.ReadEntries("lec.mp4")
	if len(entries) != 2 || entries[0].Type != "chat_request" || entries[1].Type != "chat_response" {
		t.Errorf("Unexpected log entries: %+v", entries)
	}
	if entries[0].Model != "test-model" {
		t.Errorf("Expected model on request entry, got %q", entries[0].Model)
	}
}

func TestExplainFrameWithoutCredentials(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	rec := doJSON(t, NewRouter(d), http.MethodPost, "/api/explain_frame", map[string]any{
		"name": "lec.mp4", "image": "data:image/png;base64,QUJD",
	})
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["answer"] != "LLM is not configured" {
		t.Errorf("Unexpected answer: %v", resp)
	}
}

func TestSearch(t *testing.T) {
	d := newTestDeps(t, "", &stubCompleter{})
	d.Index.Upsert("lec.mp4", []core.Segment{
		{Start: 10, End: 20, Text: "The chain rule combines derivatives."},
		{Start: 20, End: 30, Text: "Now a short break."},
	})
	router := NewRouter(d)

	rec := doJSON(t, router, http.MethodPost, "/api/search", map[string]any{
		"name": "lec.mp4", "query": "chain rule", "top_k": 1,
	})
	var resp struct {
		Answer string     `json:"answer"`
		Hits   []core.Hit `json:"hits"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Hits) != 1 || !strings.Contains(resp.Hits[0].Text, "chain rule") {
		t.Fatalf("Unexpected hits: %+v", resp.Hits)
	}
	// Without an API key the answer is assembled from the hits directly.
	if !strings.Contains(resp.Answer, "00:00:10") {
		t.Errorf("Expected timestamp in fallback answer, got %q", resp.Answer)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/search", map[string]any{"name": "", "query": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty request, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/search", map[string]any{
		"name": "ghost.mp4", "query": "anything",
	})
	decodeBody(t, rec, &resp)
	if resp.Answer != "No relevant fragments found." {
		t.Errorf("Unexpected answer for unindexed video: %q", resp.Answer)
	}
}
