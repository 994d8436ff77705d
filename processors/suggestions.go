package processors

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"lectureHall/config"
	"lectureHall/core"
)

// MinSuggestionCount derives the minimum number of questions to request:
// roughly one per divider segments, plus a fixed floor so short lectures
// still get a usable set.
func MinSuggestionCount(segmentCount int, cfg config.SuggestionConfig) int {
	div := cfg.MinCountDivider
	if div < 1 {
		div = 1
	}
	if segmentCount < 0 {
		segmentCount = 0
	}
	return segmentCount/div + cfg.MinCountExtra
}

// GenerateSuggestions asks the LLM for time-ranged discussion questions over
// the timecoded transcript. Every outcome lands in the log; the caller only
// ever sees a (possibly empty) item list.
func GenerateSuggestions(cfg *config.Config, llm Completer, logf LogFunc, name, timecoded string, segmentCount int) []core.SuggestionItem {
	if !cfg.HasValidAPI() {
		return nil
	}
	sc := cfg.Suggestions
	prompt := cfg.PromptTemplate("suggestions")
	prompt = strings.ReplaceAll(prompt, "{timecoded_transcript}", timecoded)
	prompt = strings.ReplaceAll(prompt, "{min_duration}", core.FormatClock(float64(sc.MinDurationSec)))
	prompt = strings.ReplaceAll(prompt, "{min_count}", strconv.Itoa(MinSuggestionCount(segmentCount, sc)))
	prompt = strings.ReplaceAll(prompt, "{min_words}", strconv.Itoa(sc.MinWords))
	prompt = strings.ReplaceAll(prompt, "{max_words}", strconv.Itoa(sc.MaxWords))

	entry := core.NewLogEntry("suggestions_request", prompt)
	entry.Model = cfg.ChatModel
	logf(name, entry)

	answer, err := CompleteWithRetry(llm, cfg.ChatModel, prompt)
	if answer == "" {
		content := "empty_suggestions"
		if err != nil {
			content = err.Error()
		}
		logf(name, core.NewLogEntry("error", content))
		return nil
	}
	logf(name, core.NewLogEntry("suggestions_response", answer))

	items := ParseSuggestionItems(answer)
	if len(items) == 0 {
		logf(name, core.NewLogEntry("error", "suggestions_parse_failed"))
	}
	return items
}

var bracketSpan = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseSuggestionItems recovers a suggestion list from free-form LLM output.
// Attempts, in order: direct JSON parse; the same with fenced code block
// lines stripped; the first bracketed span in the text. Items missing any of
// text/start/end are dropped.
func ParseSuggestionItems(answer string) []core.SuggestionItem {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil
	}
	var raw []core.SuggestionItem
	if err := json.Unmarshal([]byte(answer), &raw); err != nil {
		raw = nil
		if cleaned := stripCodeFence(answer); cleaned != answer {
			_ = json.Unmarshal([]byte(cleaned), &raw)
		}
		if raw == nil {
			if span := bracketSpan.FindString(answer); span != "" {
				_ = json.Unmarshal([]byte(span), &raw)
			}
		}
	}
	items := make([]core.SuggestionItem, 0, len(raw))
	for _, it := range raw {
		if it.Text == "" || it.Start == "" || it.End == "" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// stripCodeFence drops every line that is a fence marker, leaving whatever
// the model wrapped in ```json ... ```.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(strings.TrimSpace(s), "```") {
		return s
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
