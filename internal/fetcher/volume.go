package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flash-trader/internal/logging"
)

var maxVolume = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// VolumeOptions parameterise the HTTP volume fetcher.
type VolumeOptions struct {
	URL       string
	Field     string
	Decimals  int32
	Timeout   time.Duration
	UserAgent string
}

// HTTPVolume reads the DEX volume from a JSON endpoint.
type HTTPVolume struct {
	opts   VolumeOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTPVolume constructs a volume fetcher.
func NewHTTPVolume(opts VolumeOptions, logger zerolog.Logger) *HTTPVolume {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Field == "" {
		opts.Field = "volume"
	}

	return &HTTPVolume{
		opts:   opts,
		logger: logging.Component(logger, "volume_fetcher"),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchVolume GETs the endpoint and returns floor(field * 10^decimals).
// Field may be a dotted path into nested objects; the value may be a JSON number or string.
func (h *HTTPVolume) FetchVolume(ctx context.Context) (uint64, error) {
	if h.opts.URL == "" {
		return 0, errors.New("volume url required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, parseHTTPError(resp.StatusCode, payload)
	}

	raw, err := lookupField(payload, h.opts.Field)
	if err != nil {
		return 0, err
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", raw, err)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("volume is negative: %s", value)
	}

	scaled := value.Shift(h.opts.Decimals).Floor()
	if scaled.GreaterThan(maxVolume) {
		return 0, fmt.Errorf("volume %s overflows u64", scaled)
	}

	volume := scaled.BigInt().Uint64()
	h.logger.Debug().Uint64("volume", volume).Msg("volume fetched")
	return volume, nil
}

func lookupField(payload []byte, path string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("decode volume payload: %w", err)
	}

	current := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", fmt.Errorf("volume field %q: %q is not an object", path, part)
		}
		if current, ok = obj[part]; !ok {
			return "", fmt.Errorf("volume field %q missing", path)
		}
	}

	switch v := current.(type) {
	case json.Number:
		return v.String(), nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("volume field %q has unsupported type %T", path, current)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("volume api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("volume api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("volume api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("volume api error (%d)", status)
}

var _ VolumeFetcher = (*HTTPVolume)(nil)
