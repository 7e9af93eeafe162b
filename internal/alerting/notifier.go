package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flash-trader/internal/engine"
	"flash-trader/internal/logging"
)

// Notification 封装一次周期结算的公告内容。
type Notification struct {
	ResetAt       time.Time
	Volume        uint64
	Pool          uint64
	Distributed   uint64
	Undistributed uint64
	Rewards       []engine.Reward
	Bonuses       []engine.Bonus
	AdditionalMsg string
}

// NewNotification summarises a cycle result.
func NewNotification(result engine.CycleResult, volume, pool uint64) Notification {
	return Notification{
		ResetAt:       time.Unix(result.ResetAt, 0).UTC(),
		Volume:        volume,
		Pool:          pool,
		Distributed:   result.Distribution.Distributed,
		Undistributed: result.Distribution.Undistributed,
		Rewards:       result.Distribution.Rewards,
		Bonuses:       result.Bonuses,
	}
}

// Notifier 定义公告输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 推送器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Component(logger, "alert_telegram"),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Time("reset_at", note.ResetAt).
		Int("winners", len(note.Rewards)).
		Int("bonuses", len(note.Bonuses)).
		Msg("周期公告已发送 (Telegram)")
	return nil
}

// RenderMessage formats the announcement text. Amounts are shown in whole tokens.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Flash Trader Cycle]\n")
	builder.WriteString(fmt.Sprintf("Reset: %s UTC\n", note.ResetAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("DEX volume: %d\n", note.Volume))
	builder.WriteString(fmt.Sprintf("Pool: %s\n", engine.FormatTokenAmount(note.Pool)))
	builder.WriteString(fmt.Sprintf("Distributed: %s (undistributed %s)\n",
		engine.FormatTokenAmount(note.Distributed), engine.FormatTokenAmount(note.Undistributed)))

	if len(note.Rewards) == 0 {
		builder.WriteString("No activity this cycle.\n")
	}
	for i, r := range note.Rewards {
		line := fmt.Sprintf("#%d %s  trades=%d  reward=%s", i+1, r.Trader.Short(), r.OneMinCount, engine.FormatTokenAmount(r.FinalShare))
		if r.Decayed {
			line += " (decayed)"
		}
		builder.WriteString(line + "\n")
	}
	for _, b := range note.Bonuses {
		builder.WriteString(fmt.Sprintf("Bonus: %s +%s\n", b.Trader.Short(), engine.FormatTokenAmount(b.Amount)))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
