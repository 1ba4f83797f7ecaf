// Package handler exposes a crawl run behind the single invocation contract
// shared by the CLI and the Lambda function: an opaque trigger in, a
// {statusCode, body} payload out.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context, seed string) *types.RunResult
}

// Trigger is the optional shape of an invocation input. Unknown fields are
// ignored so scheduler events can be passed straight through.
type Trigger struct {
	URL string `json:"url"`
}

// Handler turns triggers into runs.
type Handler struct {
	runner Runner
	seed   string
	logger *slog.Logger
}

// NewHandler wraps runner; seed is used when the trigger names no URL.
func NewHandler(runner Runner, seed string, logger *slog.Logger) *Handler {
	return &Handler{
		runner: runner,
		seed:   seed,
		logger: logger.With("component", "handler"),
	}
}

// Invoke runs a crawl and reports it as a status payload. The returned error
// is always nil: failures are carried in the payload.
func (h *Handler) Invoke(ctx context.Context, trigger json.RawMessage) (types.StatusPayload, error) {
	seed, err := h.seedFor(trigger)
	if err != nil {
		h.logger.Warn("rejected trigger", "error", err)
		return types.StatusPayload{
			StatusCode: http.StatusBadRequest,
			Body:       fmt.Sprintf("Invalid trigger: %v", err),
		}, nil
	}

	run := h.runner.Run(ctx, seed)
	return Payload(run), nil
}

func (h *Handler) seedFor(trigger json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(trigger)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return h.seed, nil
	}

	// Scheduled events and the like are objects without a url.
	if trimmed[0] != '{' {
		return h.seed, nil
	}

	var t Trigger
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return "", fmt.Errorf("decode trigger: %w", err)
	}
	if t.URL == "" {
		return h.seed, nil
	}
	if err := config.ValidateURL(t.URL); err != nil {
		return "", err
	}
	return t.URL, nil
}

// Payload renders a finished run.
func Payload(run *types.RunResult) types.StatusPayload {
	if run.Status == types.StatusSucceeded {
		return types.StatusPayload{
			StatusCode: http.StatusOK,
			Body: fmt.Sprintf("Scraping completed, %d records from %d pages written to %s",
				len(run.Records), run.Pages, run.Location),
		}
	}
	return types.StatusPayload{
		StatusCode: http.StatusInternalServerError,
		Body:       fmt.Sprintf("Scraping failed at %s: %v", types.Stage(run.Err), run.Err),
	}
}
