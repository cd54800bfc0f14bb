package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GeminiOptions configures GeminiClient.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	RetryCount int
	RetryWait  time.Duration
}

// GeminiClient calls the generateContent REST endpoint.
type GeminiClient struct {
	http  *resty.Client
	model string
	log   *zap.Logger
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient creates a client. The request deadline comes from the
// caller's context.
func NewGeminiClient(opts GeminiOptions, log *zap.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini: API key not configured")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4*opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", opts.APIKey)

	return &GeminiClient{
		http:  client,
		model: strings.TrimPrefix(opts.Model, "models/"),
		log:   log,
	}, nil
}

// HTTPClient exposes the underlying client so tests can swap its transport.
func (c *GeminiClient) HTTPClient() *http.Client { return c.http.GetClient() }

// Analyze sends the prompt and every image in one request.
func (c *GeminiClient) Analyze(ctx context.Context, req Request) (Result, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Result{}, &AnalysisError{Err: fmt.Errorf("build prompt: %w", err)}
	}

	parts := make([]part, 0, len(req.Images)+1)
	parts = append(parts, part{Text: prompt})
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &inlineData{MIMEType: img.MIMEType, Data: img.Data}})
	}

	var out generateResponse
	var apiErr apiError
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetBody(generateRequest{Contents: []content{{Role: "user", Parts: parts}}}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.log.Warn("analysis request failed", zap.String("model", c.model), zap.Error(err))
		return Result{}, &AnalysisError{Err: err}
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		c.log.Warn("analysis request rejected",
			zap.String("model", c.model),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", msg))
		return Result{}, &AnalysisError{StatusCode: resp.StatusCode(), Err: errors.New(msg)}
	}

	report := out.text()
	if report == "" {
		reason := "empty response"
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + out.PromptFeedback.BlockReason
		}
		return Result{}, &AnalysisError{StatusCode: resp.StatusCode(), Err: errors.New(reason)}
	}

	status := DeriveStatus(report)
	c.log.Info("analysis completed",
		zap.String("model", c.model),
		zap.Int("images", len(req.Images)),
		zap.Int("floors", len(req.Floors)),
		zap.String("status", string(status)),
		zap.Duration("elapsed", time.Since(start)))
	return Result{Report: report, Status: status}, nil
}

func (r *generateResponse) text() string {
	var b strings.Builder
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
