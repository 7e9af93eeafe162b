// Package transfer hands computed value movements to the service that
// actually moves tokens.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flash-trader/internal/engine"
	"flash-trader/internal/logging"
	"flash-trader/internal/storage"
	"flash-trader/internal/version"
)

// Request is the wire form of one transfer request.
type Request struct {
	ID          int64          `json:"id"`
	Key         string         `json:"key"`
	Destination string         `json:"destination"`
	Amount      string         `json:"amount"`
	Purpose     engine.Purpose `json:"purpose"`
}

// NewRequest converts a queued record to its wire form. Amount is in base units.
func NewRequest(rec storage.TransferRecord) Request {
	return Request{
		ID:          rec.ID,
		Key:         rec.Key,
		Destination: rec.Transfer.Destination.String(),
		Amount:      fmt.Sprintf("%d", rec.Transfer.Amount),
		Purpose:     rec.Transfer.Purpose,
	}
}

// Executor performs transfers. Implementations must be idempotent per request Key.
type Executor interface {
	Execute(ctx context.Context, rec storage.TransferRecord) error
}

// LogExecutor records transfers in the log and treats them as done.
type LogExecutor struct {
	logger zerolog.Logger
}

// NewLogExecutor builds a LogExecutor.
func NewLogExecutor(logger zerolog.Logger) *LogExecutor {
	return &LogExecutor{logger: logging.Component(logger, "transfer_log")}
}

// Execute logs the transfer.
func (e *LogExecutor) Execute(_ context.Context, rec storage.TransferRecord) error {
	e.logger.Info().
		Int64("id", rec.ID).
		Str("key", rec.Key).
		Str("destination", rec.Transfer.Destination.String()).
		Str("amount", engine.FormatTokenAmount(rec.Transfer.Amount)).
		Str("purpose", string(rec.Transfer.Purpose)).
		Msg("transfer dispatched")
	return nil
}

// WebhookExecutor posts each request as JSON to an external transfer service.
type WebhookExecutor struct {
	url       string
	authToken string
	client    *http.Client
	logger    zerolog.Logger
}

// NewWebhookExecutor builds a WebhookExecutor.
func NewWebhookExecutor(url, authToken string, timeout time.Duration, logger zerolog.Logger) *WebhookExecutor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookExecutor{
		url:       strings.TrimRight(url, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
		logger:    logging.Component(logger, "transfer_webhook"),
	}
}

// Execute posts the request and expects a 2xx response.
func (e *WebhookExecutor) Execute(ctx context.Context, rec storage.TransferRecord) error {
	body, err := json.Marshal(NewRequest(rec))
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Idempotency-Key", rec.Key)
	if e.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.authToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send transfer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("transfer service status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	e.logger.Debug().Int64("id", rec.ID).Str("purpose", string(rec.Transfer.Purpose)).Msg("transfer accepted")
	return nil
}

var (
	_ Executor = (*LogExecutor)(nil)
	_ Executor = (*WebhookExecutor)(nil)
)
