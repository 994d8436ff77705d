package processors

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"lectureHall/config"
	"lectureHall/core"
)

// LogFunc appends one entry to a video's processing log.
type LogFunc func(name string, entry core.LogEntry)

// Completer is the single-prompt text completion boundary. Stages depend on
// this instead of a concrete client so tests can substitute canned output.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type openAICompleter struct {
	cli *openai.Client
}

// NewCompleter builds the chat-completions client from the config.
func NewCompleter(cfg *config.Config) Completer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openAICompleter{cli: openai.NewClientWithConfig(clientConfig)}
}

func (c openAICompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const (
	maxAttempts  = 3
	retryBackoff = 1500 * time.Millisecond
	callTimeout  = 2 * time.Minute
)

// isRateLimited reports whether an external call failed on a rate-limit
// shaped condition. Only these failures are worth retrying.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate")
}

// CompleteWithRetry runs one completion with the uniform external-call
// policy: up to three attempts, linear backoff, retry only on rate limits.
// Any other failure aborts immediately with the last error.
func CompleteWithRetry(llm Completer, model, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		answer, err := llm.Complete(ctx, model, prompt)
		cancel()
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !isRateLimited(err) {
			break
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
	return "", lastErr
}
