package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"lectureHall/config"
	"lectureHall/processors"
	"lectureHall/server"
	"lectureHall/storage"
)

var videoExtensions = []string{".mp4", ".webm", ".mkv", ".mov", ".avi", ".m4v"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	root := config.DataRoot()
	dirs, err := config.EnsureDataDirs(root)
	if err != nil {
		log.Fatalf("create data dirs: %v", err)
	}

	deps := server.Deps{
		Cfg:         cfg,
		Dirs:        dirs,
		Videos:      storage.NewVideoStore(dirs.Video, videoExtensions),
		Subtitles:   storage.NewSubtitleStore(dirs.Subtitles),
		Summaries:   storage.NewSummaryStore(dirs.Summaries),
		Suggestions: storage.NewSuggestionStore(dirs.Suggestions),
		Logs:        storage.NewLogStore(dirs.Logs),
		Frames:      storage.NewFrameStore(dirs.Frames),
		Index:       storage.NewVectorStore(cfg),
		LLM:         processors.NewCompleter(cfg),
	}
	deps.Processor = processors.NewProcessingService(
		cfg, dirs, deps.Logs, deps.Subtitles, deps.Summaries, deps.Suggestions,
		deps.Index, processors.NewASRProvider(cfg), deps.LLM,
	)

	port := cfg.Server.Port
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)

	log.Printf("data root: %s", root)
	log.Printf("chat model: %s, vector backend: %s", cfg.ChatModel, cfg.VectorBackend)
	if !cfg.HasValidAPI() {
		log.Printf("no API key configured, summaries and suggestions are disabled")
	}
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, server.NewRouter(deps)); err != nil {
		log.Fatalf("server: %v", err)
	}
}
