package providers

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const (
	maxGenerateAttempts = 3
	maxBackoff          = 8 * time.Second
)

// GeminiClient is the production LLMProvider. Calls go through a request
// rate limiter and a circuit breaker, with bounded retries on top.
type GeminiClient struct {
	client      *genai.Client
	modelID     string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

type rateLimits struct {
	RPM int
}

func tierLimits(tier string) rateLimits {
	switch tier {
	case "tier1":
		return rateLimits{RPM: 1000}
	case "tier2":
		return rateLimits{RPM: 2000}
	default:
		return rateLimits{RPM: 10}
	}
}

func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	limits := tierLimits(cfg.GeminiTier)
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(1, limits.RPM/10))

	return &GeminiClient{
		client:      client,
		modelID:     cfg.GeminiModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

func (gc *GeminiClient) Close() error {
	return gc.client.Close()
}

// GenerateJSON runs the prompt against Gemini and returns the first JSON
// object found in the response text. Up to three attempts with doubling,
// capped backoff plus jitter; the last error is returned after exhaustion.
func (gc *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (*LLMResponse, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_json")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.modelID),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	retryCount := 0
	var lastErr error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		if err := gc.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		logger.Info("gemini request", "model", gc.modelID, "prompt_chars", len(prompt), "attempt", attempt)

		result, err := gc.breaker.Execute(func() (interface{}, error) {
			model := gc.client.GenerativeModel(gc.modelID)
			model.SetTemperature(0.2)
			model.SetTopP(0.9)
			model.SetMaxOutputTokens(1800)
			model.ResponseMIMEType = "application/json"
			return model.GenerateContent(ctx, genai.Text(prompt))
		})
		if err == nil {
			resp := result.(*genai.GenerateContentResponse)
			latency := int(time.Since(start).Milliseconds())
			text := collectText(resp)
			jsonText := extractFirstJSON(text)
			if jsonText == "" {
				jsonText = "{}"
			}
			tokensIn, tokensOut := tokenUsage(resp)
			span.SetAttributes(attribute.Int("gemini.latency_ms", latency))
			logger.Info("gemini response", "model", gc.modelID, "latency_ms", latency, "attempt", attempt)
			return &LLMResponse{
				Content:      jsonText,
				ModelID:      gc.modelID,
				LatencyMS:    latency,
				TokensInput:  tokensIn,
				TokensOutput: tokensOut,
				RetryCount:   retryCount,
			}, nil
		}

		lastErr = err
		span.SetAttributes(attribute.Bool("gemini.error", true))
		if attempt >= maxGenerateAttempts || err == gobreaker.ErrOpenState {
			break
		}
		retryCount++
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		backoff += time.Duration(rand.Int63n(int64(300 * time.Millisecond)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

func tokenUsage(resp *genai.GenerateContentResponse) (*int, *int) {
	if resp.UsageMetadata == nil {
		return nil, nil
	}
	in := int(resp.UsageMetadata.PromptTokenCount)
	out := int(resp.UsageMetadata.CandidatesTokenCount)
	return &in, &out
}

// extractFirstJSON scans for the first decodable JSON object in text.
// Models occasionally wrap their JSON in prose or fences despite the
// JSON-only instruction.
func extractFirstJSON(text string) string {
	for idx := 0; idx < len(text); idx++ {
		if text[idx] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[idx:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		normalized, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		return string(normalized)
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
