package processors

import (
	"fmt"
	"strings"

	"lectureHall/config"
	"lectureHall/core"
)

// Summarize produces the lecture synopsis from the joined transcript text.
// It returns "" without touching the log when there is nothing to summarize
// or no API credentials: a disabled feature, not a failure.
func Summarize(cfg *config.Config, llm Completer, logf LogFunc, name, transcript string) string {
	if strings.TrimSpace(transcript) == "" || !cfg.HasValidAPI() {
		return ""
	}
	tpl := cfg.PromptTemplate("summary")
	prompt := strings.ReplaceAll(tpl, "{transcript}", transcript)

	entry := core.NewLogEntry("summary_request", tpl)
	entry.Model = cfg.ChatModel
	logf(name, entry)

	summary, err := CompleteWithRetry(llm, cfg.ChatModel, prompt)
	if err != nil {
		logf(name, core.NewLogEntry("error", fmt.Sprintf("summary_error: %v", err)))
		return ""
	}
	if summary != "" {
		logf(name, core.NewLogEntry("summary_response", summary))
	}
	return summary
}
