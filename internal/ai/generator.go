package ai

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	genkitai "github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// thinkRe matches reasoning blocks that some local models (qwen family)
// emit before the actual answer. They are never part of the output.
var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ModelGenerator is a Generator backed by genkit.Generate.
type ModelGenerator struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewModelGenerator creates a generator for the named model. timeout bounds
// each Generate call. If logger is nil, slog.Default() is used.
func NewModelGenerator(g *genkit.Genkit, modelName string, timeout time.Duration, logger *slog.Logger) (*ModelGenerator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelGenerator{g: g, modelName: modelName, timeout: timeout, logger: logger}, nil
}

// Generate runs the prompt against the configured model and returns the
// cleaned response text.
func (m *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(ctx, m.g,
		genkitai.WithModelName(m.modelName),
		genkitai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	text := CleanResponse(resp.Text())
	m.logger.DebugContext(ctx, "generation complete",
		slog.String("model", m.modelName),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("response_bytes", len(text)))

	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}
	return text, nil
}

// CleanResponse strips reasoning blocks and surrounding whitespace from raw
// model output.
func CleanResponse(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}

// StripCodeFences removes ```json ... ``` wrapping from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// Truncate shortens s to at most n bytes for logging.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
