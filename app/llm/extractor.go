package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/metrics"
)

const maxBackoff = 30 * time.Second

// Extractor calls a Client with a per-attempt timeout and exponential
// backoff between attempts.
type Extractor struct {
	client     Client
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

func NewExtractor(client Client, maxRetries int, backoff, timeout time.Duration) *Extractor {
	return &Extractor{
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
		timeout:    timeout,
	}
}

func (e *Extractor) Provider() string {
	return e.client.Name()
}

// Run returns the raw model reply. Once all attempts fail the error is an
// *errs.ExtractionError; configuration problems are returned as they are.
func (e *Extractor) Run(ctx context.Context, prompt string) (string, error) {
	attempts := 0
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryDelay(attempt)
			slog.Warn("LLM retry scheduled", "provider", e.client.Name(), "attempt", attempt+1, "max_attempts", e.maxRetries+1, "delay", delay.String(), "error", lastErr)

			select {
			case <-ctx.Done():
				return "", &errs.ExtractionError{Provider: e.client.Name(), Attempts: attempts, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		attempts++
		started := time.Now()

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		reply, err := e.client.Complete(attemptCtx, prompt)
		cancel()

		if err == nil {
			metrics.ObserveLLMRequest(e.client.Name(), "success", time.Since(started))
			slog.Debug("LLM reply received", "provider", e.client.Name(), "attempt", attempts, "length", len(reply), "duration", time.Since(started))
			return reply, nil
		}

		metrics.ObserveLLMRequest(e.client.Name(), "error", time.Since(started))
		lastErr = err

		if errs.IsConfiguration(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", &errs.ExtractionError{Provider: e.client.Name(), Attempts: attempts, Err: ctx.Err()}
		}
		if isPermanent(err) {
			break
		}
	}

	return "", &errs.ExtractionError{Provider: e.client.Name(), Attempts: attempts, Err: lastErr}
}

func (e *Extractor) retryDelay(attempt int) time.Duration {
	delay := e.backoff * time.Duration(1<<uint(attempt-1))
	if delay > maxBackoff || delay < 0 {
		delay = maxBackoff
	}
	return delay
}

// isPermanent reports provider errors that a retry cannot fix, such as a
// rejected key or an unknown model.
func isPermanent(err error) bool {
	status := 0

	var openaiErr *openai.APIError
	var openaiReqErr *openai.RequestError
	var anthropicErr *anthropic.Error

	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.HTTPStatusCode
	case errors.As(err, &openaiReqErr):
		status = openaiReqErr.HTTPStatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
