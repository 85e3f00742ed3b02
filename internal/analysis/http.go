package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/sprite-ai/revgate/internal/model"
)

const (
	defaultHTTPAttempts = 3
	defaultHTTPDelay    = 500 * time.Millisecond
	maxResponseBytes    = 8 << 20
)

// HTTP invokes a remote analyzer backend by POSTing the View as JSON and
// decoding the response body as a finding payload. Transport errors and 5xx
// responses are retried; 4xx responses and malformed bodies are not.
type HTTP struct {
	URL      string
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
}

// Invoke implements Invoker.
func (h *HTTP) Invoke(ctx context.Context, view View) ([]model.Finding, error) {
	body, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encoding view: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	attempts := h.Attempts
	if attempts == 0 {
		attempts = defaultHTTPAttempts
	}
	delay := h.Delay
	if delay == 0 {
		delay = defaultHTTPDelay
	}

	findings, err := retry.DoWithData(func() ([]model.Finding, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%s: %s", h.URL, resp.Status)
		case resp.StatusCode >= 400:
			return nil, retry.Unrecoverable(fmt.Errorf("%s: %s", h.URL, resp.Status))
		}

		findings, err := DecodePayload(view.Analyzer, raw)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		return findings, nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrMalformedOutput) {
			return nil, ctxErr
		}
		return nil, err
	}
	return findings, nil
}
