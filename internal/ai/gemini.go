package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/statusdoc/statusdoc/internal/source"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash"

	temperature = 0.2
	maxRetries  = 3
	baseDelay   = 1 * time.Second
)

// GeminiSummarizer implements Summarizer on the Gemini API. Each summary is
// a single-shot generation call; no chat state is kept between runs.
type GeminiSummarizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger

	// call performs one generation request. Tests swap it out to exercise
	// the retry loop without the live API.
	call       func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
	retryDelay time.Duration
}

// NewGeminiSummarizer creates a summarizer backed by the named Gemini model,
// authenticating with an API key.
func NewGeminiSummarizer(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiSummarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)

	return &GeminiSummarizer{
		client: client,
		model:  model,
		logger: logger,

		call: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(prompt))
		},
		retryDelay: baseDelay,
	}, nil
}

// Close releases the underlying API client.
func (g *GeminiSummarizer) Close() error {
	return g.client.Close()
}

// Summarize sends the commit messages to Gemini and parses the tagged
// response into a Summary. An empty commit list short-circuits to an empty
// Summary without any API call, since there is nothing to summarize and a
// model asked about nothing tends to invent something.
func (g *GeminiSummarizer) Summarize(ctx context.Context, commits []source.Commit) (Summary, error) {
	if len(commits) == 0 {
		g.logger.Debug("No commits to summarize, skipping generation call")
		return Summary{}, nil
	}

	prompt := BuildPrompt(commits)
	g.logger.Debug("Requesting summary", "commits", len(commits), "promptLength", len(prompt))

	response, err := g.generate(ctx, prompt)
	if err != nil {
		return Summary{}, err
	}

	// A parse failure after a successful response is a prompt or model
	// contract defect, not a transient fault, so it is not retried here.
	return ParseSections(response)
}

// generate calls the model with bounded retries for transient API errors.
func (g *GeminiSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(g.retryDelay) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
			g.logger.Debug("Generation retry backoff", "attempt", attempt, "delay", delay+jitter)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay + jitter):
			}
		}

		resp, err := g.call(ctx, prompt)
		if err != nil {
			lastErr = err
			if isTransientAPIError(err) {
				g.logger.Debug("Transient generation error", "attempt", attempt+1, "error", err)
				continue
			}
			return "", fmt.Errorf("generation request failed: %w", err)
		}

		text := extractText(resp)
		if text == "" {
			return "", fmt.Errorf("generation response contained no text")
		}

		g.logger.Debug("Generation succeeded", "attempt", attempt+1, "responseLength", len(text))
		return text, nil
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", maxRetries, lastErr)
}

// isTransientAPIError reports whether an API error is worth retrying.
func isTransientAPIError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	// Non-API errors are treated as network-level and retried.
	return true
}

// extractText concatenates the text parts of a generation response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(builder.String())
}

// BuildPrompt renders the deterministic summarization prompt: one line per
// commit plus a strict instruction to emit the three tagged sections that
// ParseSections expects.
func BuildPrompt(commits []source.Commit) string {
	var lines []string
	for _, c := range commits {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)",
			c.Timestamp.Format("2006-01-02"),
			strings.TrimSpace(c.Message),
			c.URL))
	}

	return fmt.Sprintf(`You are preparing a weekly engineering status report using the commit messages below.

Organize the output into three sections:
1. Tasks completed 100%%
2. Tasks continue to work on
3. New tasks started

Note: Feel free to elaborate the commit messages if needed but don't club the tasks together.

Format the output exactly like:
<completed>
- task 1 (url)
</completed>

<inprogress>
- task 1 (url)
</inprogress>

<new>
- task 1 (url)
</new>

Every section marker must be present even when a section is empty.

Commit messages:
%s`, strings.Join(lines, "\n"))
}
