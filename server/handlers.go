package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"lectureHall/core"
	"lectureHall/processors"
	"lectureHall/storage"
)

func (d Deps) listVideos(w http.ResponseWriter, r *http.Request) {
	records := d.Videos.List()
	if records == nil {
		records = []storage.FileRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

func (d Deps) uploadVideo(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "no file part in the request"})
		return
	}
	defer file.Close()
	if header.Filename == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "no file selected"})
		return
	}
	name, err := d.Videos.Save(file, header.Filename)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	d.Processor.Queue(d.Videos.PathFor(name), false)
	WriteJSON(w, http.StatusCreated, map[string]string{"name": name, "url": "/video/" + name})
}

func (d Deps) serveVideo(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	path := d.Videos.PathFor(name)
	if _, err := os.Stat(path); err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	http.ServeFile(w, r, path)
}

// deleteVideo removes the video with its audio, subtitle and suggestion
// artifacts. The summary and the processing log are retained as history —
// deliberate policy, inherited from the product this replaces.
func (d Deps) deleteVideo(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	paths := []string{
		d.Videos.PathFor(name),
		processors.AudioPathFor(d.Dirs.Audio, name),
		d.Subtitles.PathFor(name),
		d.Suggestions.PathFor(name),
	}
	deleted, errs := d.Videos.DeleteRelated(paths)
	if deleted == nil {
		deleted = []string{}
	}
	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusMultiStatus
	}
	WriteJSON(w, status, map[string]any{"deleted": deleted, "errors": errs})
}

func (d Deps) ensureProcessed(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			name = strings.TrimSpace(body.Name)
		}
	}
	if name == "" {
		name = strings.TrimSpace(r.FormValue("name"))
	}
	name = filepath.Base(name)
	if name == "" || name == "." {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": "missing name"})
		return
	}
	path := d.Videos.PathFor(name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		WriteJSON(w, http.StatusNotFound, map[string]string{"status": "error", "error": "not found"})
		return
	}
	d.Processor.Queue(path, false)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (d Deps) serveSubtitles(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(chi.URLParam(r, "filename"), ".json")
	segments := d.Subtitles.ReadSegments(name)
	if segments == nil {
		segments = []core.Segment{}
	}
	WriteJSON(w, http.StatusOK, map[string][]core.Segment{"segments": segments})
}

func (d Deps) getSummary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	WriteJSON(w, http.StatusOK, map[string]string{"text": d.Summaries.Read(name)})
}

// getSuggestions serves stored suggestions, generating them on the spot when
// the artifact is missing but subtitles already exist. That read blocks on
// the LLM round trip; the alternative is an artifact that stays empty until
// someone re-triggers the whole pipeline.
func (d Deps) getSuggestions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if items := d.Suggestions.ReadItems(name); len(items) > 0 {
		WriteJSON(w, http.StatusOK, map[string][]core.SuggestionItem{"items": items})
		return
	}
	segments := d.Subtitles.ReadSegments(name)
	if len(segments) > 0 {
		timecoded := core.TimecodedTranscript(segments)
		items := processors.GenerateSuggestions(d.Cfg, d.LLM, d.Logs.Append, name, timecoded, len(segments))
		if len(items) > 0 {
			if err := d.Suggestions.WriteItems(name, items); err != nil {
				d.Logs.Append(name, core.NewLogEntry("error", "suggestions_on_demand_error: "+err.Error()))
			}
			WriteJSON(w, http.StatusOK, map[string][]core.SuggestionItem{"items": items})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string][]core.SuggestionItem{"items": {}})
}

func (d Deps) getLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	entries := d.Logs.ReadEntries(name)
	if entries == nil {
		entries = []core.LogEntry{}
	}
	WriteJSON(w, http.StatusOK, map[string][]core.LogEntry{"entries": entries})
}

func (d Deps) clearLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if err := d.Logs.Clear(name); err != nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (d Deps) serveFrame(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	path, err := d.Frames.Resolve(rel)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid path"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	http.ServeFile(w, r, path)
}
