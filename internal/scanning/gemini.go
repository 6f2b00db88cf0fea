package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

// DefaultGeminiModels are tried in order until one answers
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-flash-latest"}

const (
	geminiAttemptsPerModel = 3
	geminiQuotaWait        = 25 * time.Second
	geminiCallTimeout      = 60 * time.Second
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	models    []string
	quotaWait time.Duration
	now       func() time.Time
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, models ...string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if len(models) == 0 {
		models = DefaultGeminiModels
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		models:    models,
		quotaWait: geminiQuotaWait,
		now:       time.Now,
	}, nil
}

// ScanReceipt analyzes a receipt and extracts its fields
func (g *Gemini) ScanReceipt(ctx context.Context, data []byte, contentType string) (*expense.Extracted, error) {
	pngData, err := toPNG(data, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix ("png"), not the MIME type
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(promptFor(data, contentType)),
	}

	var extracted *expense.Extracted
	err = tryModels(ctx, g.models, geminiAttemptsPerModel, g.quotaWait, func(ctx context.Context, model string) error {
		callCtx, cancel := context.WithTimeout(ctx, geminiCallTimeout)
		defer cancel()

		resp, err := g.client.GenerativeModel(model).GenerateContent(callCtx, parts...)
		if err != nil {
			return err
		}
		text, err := responseText(resp)
		if err != nil {
			return err
		}
		extracted, err = parseExtractedJSON(text, g.now())
		if err != nil {
			return fmt.Errorf("parsing receipt data: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extracted, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

type failureKind int

const (
	failureOther failureKind = iota
	failureQuota
	failureModelMissing
)

// classify sorts provider errors into the cases the fallback policy cares about
func classify(err error) failureKind {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return failureQuota
	case codes.NotFound:
		return failureModelMissing
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return failureQuota
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return failureModelMissing
	}
	return failureOther
}

// tryModels calls fn for each model in turn until one succeeds. Quota errors wait
// and retry the same model; any other failure moves on to the next model.
func tryModels(ctx context.Context, models []string, attempts int, wait time.Duration, fn func(ctx context.Context, model string) error) error {
	var lastErr error
	for _, model := range models {
		for attempt := 1; attempt <= attempts; attempt++ {
			slog.Debug("Calling model", "model", model, "attempt", attempt)
			err := fn(ctx, model)
			if err == nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			lastErr = fmt.Errorf("%s: %w", model, err)

			kind := classify(err)
			if kind == failureModelMissing {
				slog.Warn("Model not available, trying next", "model", model)
				break
			}
			if kind == failureOther {
				slog.Warn("Model failed, trying next", "model", model, "error", err)
				break
			}

			slog.Warn("Model quota exhausted, waiting", "model", model, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return fmt.Errorf("all models failed: %w", lastErr)
}
