package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"lectureHall/config"
	"lectureHall/processors"
	"lectureHall/storage"
)

// Deps bundles everything the handlers touch. The same store instances back
// the background pipeline, so reads always see what the pipeline wrote.
type Deps struct {
	Cfg         *config.Config
	Dirs        config.DataDirs
	Videos      *storage.VideoStore
	Subtitles   *storage.SubtitleStore
	Summaries   *storage.SummaryStore
	Suggestions *storage.SuggestionStore
	Logs        *storage.LogStore
	Frames      *storage.FrameStore
	Index       storage.VectorStore
	Processor   *processors.ProcessingService
	LLM         processors.Completer
}

// NewRouter wires the HTTP surface.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(d.Cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.Cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/videos", d.listVideos)
	r.Post("/upload", d.uploadVideo)
	r.Get("/video/{filename}", d.serveVideo)
	r.Delete("/video/{filename}", d.deleteVideo)
	r.Post("/api/ensure_processed", d.ensureProcessed)

	r.Get("/subtitles/{filename}", d.serveSubtitles)
	r.Get("/summary/{filename}", d.getSummary)
	r.Get("/suggestions/{filename}", d.getSuggestions)
	r.Get("/logs/{filename}", d.getLogs)
	r.Delete("/logs/{filename}", d.clearLogs)
	r.Get("/frames/*", d.serveFrame)

	r.Post("/api/chat", d.chat)
	r.Post("/api/explain_frame", d.explainFrame)
	r.Post("/api/search", d.search)

	return r
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("write json error: %v", err)
	}
}
