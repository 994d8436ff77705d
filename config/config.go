package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type SuggestionConfig struct {
	MinDurationSec  int `json:"min_duration_sec"`
	MinWords        int `json:"min_words"`
	MaxWords        int `json:"max_words"`
	MinCountDivider int `json:"min_count_divider"`
	MinCountExtra   int `json:"min_count_extra"`
}

type Config struct {
	Server      ServerConfig `json:"server"`
	CORSOrigins []string     `json:"cors_origins"`

	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	ChatModel string `json:"chat_model"`

	EmbeddingModel string `json:"embedding_model"`

	// Speech-to-text settings. The key and base URL fall back to the chat
	// API settings when left empty.
	STTAPIKey  string `json:"stt_api_key"`
	STTBaseURL string `json:"stt_base_url"`
	STTModel   string `json:"stt_model"`
	Language   string `json:"language"`

	// Transcript search backend: "memory", "pgvector" or "milvus".
	VectorBackend string `json:"vector_backend"`
	PostgresURL   string `json:"postgres_url"`
	MilvusAddr    string `json:"milvus_addr"`

	Prompts     map[string]string `json:"prompts"`
	Suggestions SuggestionConfig  `json:"suggestions"`
}

var globalConfig *Config

// Load reads config.json if present, applies environment overrides and
// defaults, and caches the result for subsequent calls.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg := &Config{}
	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if key := os.Getenv("API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if url := os.Getenv("BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		cfg.ChatModel = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		cfg.EmbeddingModel = model
	}
	if key := os.Getenv("STT_API_KEY"); key != "" {
		cfg.STTAPIKey = key
	}
	if model := os.Getenv("STT_MODEL"); model != "" {
		cfg.STTModel = model
	}
	if lang := os.Getenv("LANGUAGE"); lang != "" {
		cfg.Language = lang
	}
	if backend := os.Getenv("STORE"); backend != "" {
		cfg.VectorBackend = backend
	}
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		cfg.PostgresURL = url
	}
	if addr := os.Getenv("MILVUS_ADDR"); addr != "" {
		cfg.MilvusAddr = addr
	}

	applyDefaults(cfg)
	globalConfig = cfg
	return globalConfig, nil
}

// Reset drops the cached config. Tests use it to load a fresh one.
func Reset() { globalConfig = nil }

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.STTModel == "" {
		cfg.STTModel = "whisper-1"
	}
	if cfg.VectorBackend == "" {
		cfg.VectorBackend = "memory"
	}
	if cfg.MilvusAddr == "" {
		cfg.MilvusAddr = "localhost:19530"
	}
	if cfg.Suggestions.MinDurationSec == 0 {
		cfg.Suggestions.MinDurationSec = 60
	}
	if cfg.Suggestions.MinWords == 0 {
		cfg.Suggestions.MinWords = 3
	}
	if cfg.Suggestions.MaxWords == 0 {
		cfg.Suggestions.MaxWords = 6
	}
	if cfg.Suggestions.MinCountDivider == 0 {
		cfg.Suggestions.MinCountDivider = 20
	}
	if cfg.Suggestions.MinCountExtra == 0 {
		cfg.Suggestions.MinCountExtra = 10
	}
}

// HasValidAPI reports whether the chat/embedding API is configured.
func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// STTKey returns the speech-to-text API key, falling back to the chat key.
func (c *Config) STTKey() string {
	if strings.TrimSpace(c.STTAPIKey) != "" {
		return c.STTAPIKey
	}
	return c.APIKey
}

// STTBase returns the speech-to-text base URL, falling back to the chat one.
func (c *Config) STTBase() string {
	if strings.TrimSpace(c.STTBaseURL) != "" {
		return c.STTBaseURL
	}
	return c.BaseURL
}

// HasSTT reports whether transcription is configured at all.
func (c *Config) HasSTT() bool {
	return strings.TrimSpace(c.STTKey()) != ""
}

// PromptTemplate returns the configured prompt for key, or the built-in
// default when the config does not override it.
func (c *Config) PromptTemplate(key string) string {
	if c.Prompts != nil {
		if v := strings.TrimSpace(c.Prompts[key]); v != "" {
			return c.Prompts[key]
		}
	}
	return promptDefaults[key]
}

// DataDirs holds the per-artifact directories under the data root.
type DataDirs struct {
	Video       string
	Audio       string
	Subtitles   string
	Frames      string
	Summaries   string
	Logs        string
	Suggestions string
}

// DataRoot returns the base data directory, overridable via DATA_ROOT.
func DataRoot() string {
	if root := os.Getenv("DATA_ROOT"); root != "" {
		return root
	}
	return "data"
}

// EnsureDataDirs creates the artifact directories under root and returns
// their paths. Creation is idempotent.
func EnsureDataDirs(root string) (DataDirs, error) {
	dirs := DataDirs{
		Video:       filepath.Join(root, "video"),
		Audio:       filepath.Join(root, "audio"),
		Subtitles:   filepath.Join(root, "subtitles"),
		Frames:      filepath.Join(root, "frames"),
		Summaries:   filepath.Join(root, "summaries"),
		Logs:        filepath.Join(root, "logs"),
		Suggestions: filepath.Join(root, "suggestions"),
	}
	for _, dir := range []string{dirs.Video, dirs.Audio, dirs.Subtitles, dirs.Frames, dirs.Summaries, dirs.Logs, dirs.Suggestions} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return DataDirs{}, err
		}
	}
	return dirs, nil
}
