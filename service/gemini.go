package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"lexdraft-backend/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

var errEmptyResponse = errors.New("model returned empty content")

// contentGenerator is the part of *genai.GenerativeModel the adapters use
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini client from the API key in cfg
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// newTextModel returns a generative model configured for plain text answers
func newTextModel(client *genai.Client, cfg config.GeminiConfig, temperature float32) *genai.GenerativeModel {
	model := client.GenerativeModel(cfg.GenerationModel)
	model.SetTemperature(temperature)
	return model
}

// retryPolicy retries transient adapter failures with exponential backoff
type retryPolicy struct {
	attempts       int
	initialBackoff time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: maxRetries, initialBackoff: initialBackoff}
}

func retryPolicyFromConfig(cfg config.GeminiConfig) retryPolicy {
	p := defaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		p.attempts = cfg.MaxRetries
	}
	if cfg.InitialBackoff > 0 {
		p.initialBackoff = cfg.InitialBackoff
	}
	return p
}

// do runs fn until it succeeds, the error is permanent, or attempts run out
func (p retryPolicy) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	backoff := p.initialBackoff
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), err)
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt < attempts-1 {
			log.Printf("Warning: %s failed (attempt %d/%d): %v", op, attempt+1, attempts, err)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

// isRetryable reports whether another attempt could succeed
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var blocked *blockedError
	if errors.As(err, &blocked) {
		return false
	}
	var sdkBlocked *genai.BlockedError
	if errors.As(err, &sdkBlocked) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}

// blockedError is returned when the service refuses to answer a prompt
type blockedError struct {
	reason string
}

func (e *blockedError) Error() string {
	return "prompt blocked: " + e.reason
}

// responseText concatenates the text parts of all candidates
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", &blockedError{reason: resp.PromptFeedback.BlockReason.String()}
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("model returned no candidates")
	}

	var b strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason == genai.FinishReasonSafety {
			return "", &blockedError{reason: candidate.FinishReason.String()}
		}
		if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", errEmptyResponse
	}
	return result, nil
}

// generateText sends parts to the model with retry and returns the answer text
func generateText(ctx context.Context, model contentGenerator, retry retryPolicy, op string, parts ...genai.Part) (string, error) {
	var text string
	err := retry.do(ctx, op, func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return err
		}
		text, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence from model output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
