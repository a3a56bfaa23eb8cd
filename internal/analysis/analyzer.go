// Package analysis classifies monitored text for market relevance and
// sentiment through an OpenAI-compatible chat-completions endpoint.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"market-monitor/internal/logger"
	"market-monitor/internal/store"
	"market-monitor/internal/trace"
	"market-monitor/internal/types"
)

// ErrEmptyText is returned when there is nothing to analyze. No request is
// made in that case.
var ErrEmptyText = errors.New("empty text provided for analysis")

const systemPrompt = `You are a financial analyst assistant. Analyze the following financial news or tweet:
1. Determine if it's relevant to financial markets (crypto, stocks, forex, etc.)
2. Identify the sentiment (positive, negative, or neutral)
3. Extract key entities (companies, cryptocurrencies, people, etc.)
4. Provide a very brief commentary (max 2 sentences) on potential market impact
5. Assign a confidence score from 0.0 to 1.0

Respond in JSON format with these fields:
{
    "relevant": true/false,
    "sentiment": "positive/negative/neutral",
    "entities": ["entity1", "entity2", ...],
    "commentary": "Brief market analysis comment",
    "confidence": 0.XX
}`

const defaultCommentary = "Analysis currently unavailable. This news may impact markets; please review the details carefully."

// callState tracks which attempt of the fallback sequence we are on.
// Primary makes the first request; RetryFallback retries once with the
// fallback model after a model-unavailable rejection; Defaulted means no
// further requests happen and the default analysis is returned.
type callState int

const (
	statePrimary callState = iota
	stateRetryFallback
	stateDefaulted
)

// Analyzer classifies text items. Construct it once and share it; it is
// safe for concurrent use.
type Analyzer struct {
	baseURL       string
	apiKey        string
	model         string
	fallbackModel string
	temperature   float32
	client        *http.Client
}

func New(cfg *store.Config) *Analyzer {
	return &Analyzer{
		baseURL:       strings.TrimRight(cfg.Analysis.BaseURL, "/"),
		apiKey:        os.Getenv(cfg.Analysis.APIKeyEnv),
		model:         cfg.Analysis.Model,
		fallbackModel: cfg.Analysis.FallbackModel,
		temperature:   cfg.Analysis.Temperature,
		client: &http.Client{
			Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		},
	}
}

// Analyze classifies a single piece of text. It always produces a usable
// Analysis: any failure past the empty-text check collapses to the default
// result instead of an error. At most two requests are made, the second
// only when the primary model id was rejected as unavailable.
func (a *Analyzer) Analyze(ctx context.Context, text string) (types.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		logger.Warn(ctx, "Empty text provided for analysis")
		return types.Analysis{}, ErrEmptyText
	}

	ctx, span := trace.StartSpan(ctx, "analyze-text")
	defer span.End()

	state := statePrimary
	model := a.model
	for state != stateDefaulted {
		content, err := a.complete(ctx, model, text)
		if err == nil {
			if analysis, ok := a.materialize(ctx, content); ok {
				return analysis, nil
			}
			state = stateDefaulted
			continue
		}

		var apiErr *apiError
		if state == statePrimary && errors.As(err, &apiErr) && modelUnavailable(apiErr.Body) {
			logger.Info(ctx, "Model unavailable, retrying with fallback model",
				"model", model, "fallback", a.fallbackModel, "status", apiErr.Status)
			state = stateRetryFallback
			model = a.fallbackModel
			continue
		}

		logger.ErrorWithErr(ctx, "Analysis request failed", err, "model", model)
		state = stateDefaulted
	}

	logger.Warn(ctx, "Using default analysis due to API failure")
	return defaultAnalysis(), nil
}

// apiError carries the status and body of a non-2xx response so callers can
// inspect what the service rejected.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("analysis api http %d: %s", e.Status, e.Body)
}

// modelUnavailable reports whether an error body indicates the requested
// model id does not exist on the service.
func modelUnavailable(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "model not found") || strings.Contains(b, "invalid model")
}

// complete performs one chat-completions request and returns the message
// content of the first choice.
func (a *Analyzer) complete(ctx context.Context, model, text string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "chat-completion")
	defer span.End()
	span.SetAttributes(attribute.String("model", model))

	if a.apiKey == "" {
		return "", errors.New("analysis api key missing")
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     a.temperature,
	}
	bb, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	logger.Debug(ctx, "Analysis API response", "model", model,
		"status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &apiError{Status: resp.StatusCode, Body: string(excerpt)}
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}

// partialAnalysis mirrors the model's JSON output with pointer fields so a
// missing field is distinguishable from a zero value.
type partialAnalysis struct {
	Relevant   *bool    `json:"relevant"`
	Sentiment  *string  `json:"sentiment"`
	Entities   []string `json:"entities"`
	Commentary *string  `json:"commentary"`
	Confidence *float64 `json:"confidence"`
}

// materialize parses the model content and fills per-field defaults for
// anything it omitted. A response that cannot be parsed at all returns
// ok=false so the caller falls back to the default analysis.
func (a *Analyzer) materialize(ctx context.Context, content string) (types.Analysis, bool) {
	var partial partialAnalysis
	if err := json.Unmarshal([]byte(content), &partial); err != nil {
		logger.ErrorWithErr(ctx, "Error parsing analysis response", err)
		logger.Debug(ctx, "Raw analysis content", "content", content)
		return types.Analysis{}, false
	}

	analysis := types.Analysis{
		// Missing relevance defaults to relevant so items are not dropped
		// silently.
		Relevant:   true,
		Sentiment:  types.SentimentNeutral,
		Entities:   []string{},
		Commentary: "No commentary available",
		Confidence: 0.5,
	}

	if partial.Relevant != nil {
		analysis.Relevant = *partial.Relevant
	}
	if partial.Sentiment != nil {
		if s := types.Sentiment(strings.ToLower(strings.TrimSpace(*partial.Sentiment))); s.Valid() {
			analysis.Sentiment = s
		}
	}
	if partial.Entities != nil {
		analysis.Entities = partial.Entities
	}
	if partial.Commentary != nil && *partial.Commentary != "" {
		analysis.Commentary = *partial.Commentary
	}
	if partial.Confidence != nil {
		analysis.Confidence = clamp(*partial.Confidence, 0, 1)
	}

	logger.Info(ctx, "Analysis complete",
		"relevant", analysis.Relevant, "sentiment", string(analysis.Sentiment))
	return analysis, true
}

func defaultAnalysis() types.Analysis {
	return types.Analysis{
		Relevant:   true,
		Sentiment:  types.SentimentNeutral,
		Entities:   []string{},
		Commentary: defaultCommentary,
		Confidence: 0.5,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
