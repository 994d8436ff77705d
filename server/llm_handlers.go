package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"lectureHall/core"
	"lectureHall/processors"
)

const llmUnavailable = "LLM is not configured"

type chatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}

type chatRequest struct {
	Name        string        `json:"name"`
	CurrentTime float64       `json:"currentTime"`
	Dialog      []chatMessage `json:"dialog"`
	Question    string        `json:"question"`
}

// chat answers a student question in the lecturer persona, grounded in the
// summary, the transcript up to the player position, and the prior dialog.
func (d Deps) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !d.Cfg.HasValidAPI() {
		WriteJSON(w, http.StatusOK, map[string]string{"answer": llmUnavailable})
		return
	}
	name := req.Name

	segments := d.Subtitles.ReadSegments(name)
	seen := tail(core.TranscriptBefore(segments, req.CurrentTime), 3000)
	summary := d.Summaries.Read(name)
	history := renderDialog(req.Dialog, req.Question)

	prompt := d.Cfg.PromptTemplate("chat_user_template")
	prompt = strings.ReplaceAll(prompt, "{lecture}", name)
	prompt = strings.ReplaceAll(prompt, "{summary}", summary)
	prompt = strings.ReplaceAll(prompt, "{context}", seen)
	prompt = strings.ReplaceAll(prompt, "{history}", history)
	prompt = strings.ReplaceAll(prompt, "{question}", req.Question)
	full := d.Cfg.PromptTemplate("chat_system") + "\n\n" + prompt

	entry := core.NewLogEntry("chat_request", prompt)
	entry.Model = d.Cfg.ChatModel
	d.Logs.Append(name, entry)

	answer, err := processors.CompleteWithRetry(d.LLM, d.Cfg.ChatModel, full)
	if answer == "" {
		content := "empty_chat_answer"
		if err != nil {
			content = err.Error()
		}
		d.Logs.Append(name, core.NewLogEntry("error", content))
		WriteJSON(w, http.StatusOK, map[string]string{"answer": "LLM request failed"})
		return
	}
	d.Logs.Append(name, core.NewLogEntry("chat_response", answer))
	WriteJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// renderDialog flattens the prior dialog into labeled lines. The trailing
// student message duplicating the current question is dropped, as are frame
// exchanges, which carry no text worth repeating.
func renderDialog(dialog []chatMessage, question string) string {
	if len(dialog) > 0 {
		last := dialog[len(dialog)-1]
		if last.Role == "student" && strings.TrimSpace(last.Text) == strings.TrimSpace(question) {
			dialog = dialog[:len(dialog)-1]
		}
	}
	var lines []string
	for _, m := range dialog {
		if m.Kind == "frame" {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		label := "System"
		switch m.Role {
		case "student":
			label = "Student"
		case "lecturer":
			label = "Lecturer"
		}
		lines = append(lines, label+": "+text)
	}
	return strings.Join(lines, "\n")
}

type explainFrameRequest struct {
	Name        string  `json:"name"`
	Image       string  `json:"image"`
	CurrentTime float64 `json:"currentTime"`
}

// explainFrame runs a vision request over a snapshot taken in the player.
// The snapshot is persisted so the log can link back to it.
func (d Deps) explainFrame(w http.ResponseWriter, r *http.Request) {
	var req explainFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !d.Cfg.HasValidAPI() {
		WriteJSON(w, http.StatusOK, map[string]string{"answer": llmUnavailable})
		return
	}
	name := req.Name

	imageURL := ""
	if rel := d.Frames.SaveDataURL(name, req.Image); rel != "" {
		imageURL = "/frames/" + rel
	}

	summary := d.Summaries.Read(name)
	seen := core.TranscriptBefore(d.Subtitles.ReadSegments(name), req.CurrentTime)

	prompt := d.Cfg.PromptTemplate("frame_user_template")
	prompt = strings.ReplaceAll(prompt, "{lecture}", name)
	prompt = strings.ReplaceAll(prompt, "{summary}", summary)
	prompt = strings.ReplaceAll(prompt, "{context}", seen)
	full := d.Cfg.PromptTemplate("frame_system") + "\n\n" + prompt

	entry := core.NewLogEntry("frame_request", prompt)
	entry.Model = d.Cfg.ChatModel
	entry.ImageURL = imageURL
	d.Logs.Append(name, entry)

	answer, err := d.completeVision(full, req.Image)
	if answer == "" {
		content := "empty_frame_answer"
		if err != nil {
			content = err.Error()
		}
		d.Logs.Append(name, core.NewLogEntry("error", content))
		WriteJSON(w, http.StatusOK, map[string]string{"answer": "LLM request failed"})
		return
	}
	respEntry := core.NewLogEntry("frame_response", answer)
	respEntry.ImageURL = imageURL
	d.Logs.Append(name, respEntry)
	WriteJSON(w, http.StatusOK, map[string]string{"answer": answer, "image_url": imageURL})
}

// completeVision is the multimodal counterpart of the Completer boundary,
// under the same retry policy. Kept here because only this handler sends
// images.
func (d Deps) completeVision(prompt, imageDataURL string) (string, error) {
	clientConfig := openai.DefaultConfig(d.Cfg.APIKey)
	if d.Cfg.BaseURL != "" {
		clientConfig.BaseURL = d.Cfg.BaseURL
	}
	cli := openai.NewClientWithConfig(clientConfig)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: d.Cfg.ChatModel,
			Messages: []openai.ChatCompletionMessage{{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageDataURL}},
				},
			}},
		})
		cancel()
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}
		lastErr = err
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "429") && !strings.Contains(msg, "rate") {
			break
		}
		time.Sleep(1500 * time.Millisecond * time.Duration(attempt+1))
	}
	return "", lastErr
}

type searchRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// search runs similarity search over the indexed transcript and synthesizes
// an answer from the hits.
func (d Deps) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name == "" || strings.TrimSpace(req.Query) == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "name and query required"})
		return
	}
	hits := d.Index.Search(req.Name, req.Query, req.TopK)
	if hits == nil {
		hits = []core.Hit{}
	}
	answer := d.synthesizeAnswer(req.Query, hits)
	WriteJSON(w, http.StatusOK, map[string]any{
		"name":   req.Name,
		"query":  req.Query,
		"answer": answer,
		"hits":   hits,
	})
}

func (d Deps) synthesizeAnswer(question string, hits []core.Hit) string {
	if len(hits) == 0 {
		return "No relevant fragments found."
	}
	if d.Cfg.HasValidAPI() {
		parts := make([]string, 0, len(hits))
		for i, hit := range hits {
			parts = append(parts, fmt.Sprintf("Fragment %d [%s]: %s", i+1, core.FormatClock(hit.Start), hit.Text))
		}
		prompt := d.Cfg.PromptTemplate("search_answer")
		prompt = strings.ReplaceAll(prompt, "{context}", strings.Join(parts, "\n\n"))
		prompt = strings.ReplaceAll(prompt, "{question}", question)
		if answer, err := processors.CompleteWithRetry(d.LLM, d.Cfg.ChatModel, prompt); err == nil && answer != "" {
			return answer
		}
	}
	times := make([]string, 0, len(hits))
	snips := make([]string, 0, len(hits))
	for _, h := range hits {
		times = append(times, core.FormatClock(h.Start))
		snips = append(snips, strings.TrimSpace(h.Text))
	}
	return "Relevant fragments at: " + strings.Join(times, ", ") + ". " + strings.Join(snips, " ")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
