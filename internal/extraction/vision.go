package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// VisionPrompt is sent with every image.
const VisionPrompt = "Describe this UI screenshot or diagram in technical detail for a QA engineer. " +
	"List all visible buttons, fields, error messages, and layout elements."

const (
	defaultVisionBaseURL = "https://api.groq.com/openai/v1"
	defaultVisionModel   = "meta-llama/llama-4-maverick-17b-128e-instruct"
	defaultVisionTokens  = 1024
	defaultVisionTimeout = 60 * time.Second
	defaultMaxRetries    = 3
	defaultBaseBackoff   = 1 * time.Second
)

// VisionConfig configures the OpenAI-compatible vision client.
type VisionConfig struct {
	BaseURL     string
	Model       string
	APIKey      string `json:"-"`
	Temperature float64
	MaxTokens   int
	RateLimit   float64 // requests per second; zero disables limiting
	Burst       int
	MaxRetries  int
	Timeout     time.Duration
}

// ContentGenerator is the slice of llms.Model the describer needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// VisionDescriber asks a multimodal chat model to describe an image.
type VisionDescriber struct {
	model   ContentGenerator
	cfg     VisionConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewVisionDescriber connects to an OpenAI-compatible endpoint. Transient
// HTTP failures (429, 5xx, transport errors) are retried with exponential
// backoff inside the client transport.
func NewVisionDescriber(cfg VisionConfig, logger *zap.Logger) (*VisionDescriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrVisionUnavailable)
	}
	cfg = cfg.withDefaults()

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &retryTransport{
			base:        http.DefaultTransport,
			maxRetries:  cfg.MaxRetries,
			baseBackoff: defaultBaseBackoff,
		},
	}
	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVisionUnavailable, err)
	}
	return NewVisionDescriberWithModel(llm, cfg, logger), nil
}

// NewVisionDescriberWithModel wraps an existing model.
func NewVisionDescriberWithModel(model ContentGenerator, cfg VisionConfig, logger *zap.Logger) *VisionDescriber {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &VisionDescriber{model: model, cfg: cfg, limiter: limiter, logger: logger}
}

func (c VisionConfig) withDefaults() VisionConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultVisionBaseURL
	}
	if c.Model == "" {
		c.Model = defaultVisionModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultVisionTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultVisionTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Describe returns the model's description of the image at path. An empty
// answer is returned as "" with no error.
func (v *VisionDescriber) Describe(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}
	}

	messages := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(VisionPrompt),
			llms.ImageURLPart(dataURL),
		},
	}}

	start := time.Now()
	resp, err := v.model.GenerateContent(ctx, messages,
		llms.WithTemperature(v.cfg.Temperature),
		llms.WithMaxTokens(v.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVisionUnavailable, err)
	}
	v.logger.Debug("vision description received",
		zap.String("model", v.cfg.Model),
		zap.Duration("latency", time.Since(start)))

	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// retryTransport retries rate-limited, server-error and transport-failed
// requests. Requests with a body must support GetBody.
type retryTransport struct {
	base        http.RoundTripper
	maxRetries  int
	baseBackoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	cur := req
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := t.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
			if req.Body != nil {
				if req.GetBody == nil {
					return nil, fmt.Errorf("cannot retry request: %w", lastErr)
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				cur = req.Clone(req.Context())
				cur.Body = body
			}
		}

		resp, err := t.base.RoundTrip(cur)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !retryableStatus(resp.StatusCode) || attempt == t.maxRetries {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
