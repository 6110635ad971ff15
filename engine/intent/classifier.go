// Package intent turns free-form user text into a structured action request
// using an LLM chat completion constrained to JSON output.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/arogyalabs/carefind/engine/domain"
	"github.com/arogyalabs/carefind/pkg/resilience"
)

const systemPrompt = `You extract a structured request from a user message about hospitals in India.
Respond with a single JSON object and nothing else:
{"action": "search" | "confirm" | "out_of_scope", "city": "<city or empty>", "hospital_name": "<name or empty>", "limit": <number or 0>}
Use "confirm" when the user names a specific hospital, "search" when they want hospitals listed for a city, "out_of_scope" otherwise.`

// ChatCompleter is the slice of the OpenAI client the classifier needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier wraps a chat model call with parsing and normalization. A nil
// limiter disables rate limiting.
type Classifier struct {
	api     ChatCompleter
	model   string
	gaz     domain.Gazetteer
	limiter *resilience.Limiter
	log     *slog.Logger
}

// New creates a Classifier.
func New(api ChatCompleter, model string, gaz domain.Gazetteer, limiter *resilience.Limiter, log *slog.Logger) *Classifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Classifier{api: api, model: model, gaz: gaz, limiter: limiter, log: log}
}

// outOfScope is the degraded result for anything the model call or its
// output cannot support.
func outOfScope() domain.Intent {
	return domain.Intent{Action: domain.ActionOutOfScope}
}

// Classify extracts an Intent from user text. It never returns an error:
// upstream failures, malformed JSON, and unknown actions all degrade to
// out_of_scope so the turn can still be answered.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return outOfScope()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.log.Warn("classifier rate limit wait aborted", "error", err)
			return outOfScope()
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		c.log.Warn("intent classification failed", "error", err)
		return outOfScope()
	}
	if len(resp.Choices) == 0 {
		return outOfScope()
	}
	return c.parse(resp.Choices[0].Message.Content)
}

// parse decodes the model output and normalizes it. Anything unparseable
// degrades to out_of_scope rather than erroring.
func (c *Classifier) parse(content string) domain.Intent {
	var in domain.Intent
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &in); err != nil {
		c.log.Warn("classifier output was not valid JSON", "content", content)
		return outOfScope()
	}
	if !domain.ValidActions[in.Action] {
		c.log.Warn("classifier returned unknown action", "action", in.Action)
		return outOfScope()
	}
	in.City = c.gaz.Canonical(in.City)
	in.HospitalName = strings.TrimSpace(in.HospitalName)
	if in.Limit < 0 {
		in.Limit = 0
	}
	return in
}
