// Package synth turns accumulated evidence text into a new typed
// characteristic value by calling the inference model.
//
// The synthesizer itself never blends old and new field values; the
// prior record rides along in the prompt and blending is the model's
// job. A payload that does not validate against the kind's schema is
// rejected, never guessed at.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/mindmirror/mindmirror/internal/trait"
)

// Sentinel errors for synthesis outcomes, checked with errors.Is().
var (
	// ErrUpstream indicates the inference call failed or timed out.
	// Evidence stays pending; the identical request is safe to retry.
	ErrUpstream = errors.New("inference upstream error")

	// ErrInvalidResponse indicates the model returned a payload that
	// could not be parsed or does not validate against the kind schema.
	ErrInvalidResponse = errors.New("invalid inference response")
)

// maxResponseBytes limits the model response size before JSON parsing.
const maxResponseBytes = 16 * 1024

// DefaultTimeout bounds one full synthesis call including retries.
const DefaultTimeout = 60 * time.Second

// Config holds Synthesizer settings.
type Config struct {
	// ModelName is the genkit model reference (e.g. "googleai/gemini-2.5-flash").
	ModelName string

	Temperature float32
	MaxTokens   int

	// Timeout bounds the whole Synthesize call. Zero means DefaultTimeout.
	Timeout time.Duration

	// RatePerMinute throttles model calls. Zero disables throttling.
	RatePerMinute int

	Retry RetryConfig
}

// Synthesizer calls the inference model and validates the result.
//
// Synthesizer is safe for concurrent use by multiple goroutines.
type Synthesizer struct {
	g       *genkit.Genkit
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Synthesizer.
func New(g *genkit.Genkit, cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Only a fully zero RetryConfig means "unset"; MaxRetries 0 with
	// intervals set is an explicit no-retry configuration.
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	return &Synthesizer{g: g, cfg: cfg, limiter: limiter, logger: logger}, nil
}

// Synthesize produces a new field payload for the kind from the
// concatenated evidence text, with the prior record (may be nil) given
// to the model as context. The returned payload validates against the
// kind's schema; the caller owns versioning and persistence.
func (s *Synthesizer) Synthesize(ctx context.Context, kind trait.Kind, evidenceText string, prior *trait.Record) (map[string]any, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", trait.ErrUnknownKind, kind)
	}
	if strings.TrimSpace(evidenceText) == "" {
		return nil, fmt.Errorf("%w: empty evidence", ErrInvalidResponse)
	}

	prompt, err := buildPrompt(kind, evidenceText, prior)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	fields, err := parseFields(kind, resp.Text())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("characteristic synthesized",
		"kind", kind,
		"evidence_chars", len(evidenceText),
		"prior", prior != nil,
	)
	return fields, nil
}

// generate issues one model call.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	temperature := s.cfg.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if s.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(s.cfg.MaxTokens)
	}

	return genkit.Generate(ctx, s.g,
		ai.WithModelName(s.cfg.ModelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(genCfg),
	)
}

// parseFields parses and validates the raw model text for the kind.
func parseFields(kind trait.Kind, text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	if len(text) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response too large (%d bytes)", ErrInvalidResponse, len(text))
	}

	text = stripCodeFences(text)

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: parsing payload: %v", ErrInvalidResponse, err)
	}

	if err := trait.ValidateFields(kind, fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return fields, nil
}

// stripCodeFences removes a single surrounding markdown code fence.
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
