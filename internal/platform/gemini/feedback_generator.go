package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/cadence-learn/cadence-api/internal/config"
	"github.com/cadence-learn/cadence-api/internal/feedback"
)

// promptTemplate shapes the grading request. The model is instructed to
// respond with a single JSON object matching feedback.Result.
const promptTemplate = `You are grading a language learner's answer.

Question:
{{.Prompt}}

Grading rubric:
{{.Rubric}}

Student answer:
{{.Answer}}

Score the answer against the rubric on a scale from 0.0 (no credit) to 1.0
(full credit) and write short, encouraging feedback for the student.

Respond with exactly one JSON object of the form:
{"score": <number between 0 and 1>, "explanation": "<feedback text>"}`

// promptData carries the fields interpolated into the prompt template.
type promptData struct {
	Prompt string
	Rubric string
	Answer string
}

// FeedbackGenerator implements the feedback.Generator interface using
// Google's Gemini API to grade open-ended answers against a rubric.
type FeedbackGenerator struct {
	logger *slog.Logger
	config config.FeedbackConfig
	tmpl   *template.Template
	client *genai.Client
	model  string
}

// NewFeedbackGenerator creates a new instance of FeedbackGenerator with the
// provided dependencies.
func NewFeedbackGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.FeedbackConfig,
) (*FeedbackGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", feedback.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", feedback.ErrInvalidConfig)
	}

	tmpl, err := template.New("feedback").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			feedback.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			feedback.ErrInvalidConfig, err)
	}

	return &FeedbackGenerator{
		logger: logger.With(slog.String("component", "feedback_generator")),
		config: cfg,
		tmpl:   tmpl,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Ensure FeedbackGenerator implements feedback.Generator interface
var _ feedback.Generator = (*FeedbackGenerator)(nil)

// GenerateFeedback implements feedback.Generator.GenerateFeedback.
func (g *FeedbackGenerator) GenerateFeedback(
	ctx context.Context,
	prompt, rubric, answer string,
) (*feedback.Result, error) {
	if answer == "" {
		return nil, feedback.ErrEmptyAnswer
	}

	var buf bytes.Buffer
	err := g.tmpl.Execute(&buf, promptData{Prompt: prompt, Rubric: rubric, Answer: answer})
	if err != nil {
		return nil, fmt.Errorf("failed to execute prompt template: %w", err)
	}

	result, err := g.callWithRetry(ctx, buf.String())
	if err != nil {
		return nil, err
	}

	// The model occasionally wanders outside the requested range; clamp
	// rather than reject, since the explanation is still usable.
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result, nil
}

// callWithRetry makes a call to the Gemini API with exponential backoff
// retry logic. Transient errors (reachability, timeouts) are retried up to
// MaxRetries times; permanent errors (blocked content, unparseable
// responses) are returned immediately.
func (g *FeedbackGenerator) callWithRetry(ctx context.Context, prompt string) (*feedback.Result, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelay := time.Duration(g.config.RetryBaseDelayMS) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		g.logger.InfoContext(ctx, "calling feedback model",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		result, err := g.callOnce(ctx, prompt)
		if err == nil {
			return result, nil
		}

		g.logger.ErrorContext(ctx, "feedback model call failed",
			"attempt", attempt+1,
			"error", err)

		// Permanent errors never benefit from a retry.
		if errors.Is(err, feedback.ErrContentBlocked) || errors.Is(err, feedback.ErrInvalidResponse) {
			return nil, err
		}

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d)",
				feedback.ErrTransientFailure, maxRetries)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoff * jitter)

		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attempt+1,
			"delay", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", feedback.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single API call and classifies the outcome.
func (g *FeedbackGenerator) callOnce(ctx context.Context, prompt string) (*feedback.Result, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		// API-level errors are assumed transient; the retry loop decides
		// whether to give up.
		return nil, fmt.Errorf("%w: %v", feedback.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", feedback.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: answer rejected by safety filters", feedback.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty content in response", feedback.ErrInvalidResponse)
	}

	var result feedback.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			feedback.ErrInvalidResponse, err)
	}
	if result.Explanation == "" {
		return nil, fmt.Errorf("%w: missing explanation", feedback.ErrInvalidResponse)
	}
	return &result, nil
}
