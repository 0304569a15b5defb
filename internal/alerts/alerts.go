// Package alerts delivers best-effort trade and crisis notifications over
// Telegram and Discord. Delivery never blocks trading.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// Kind selects the per-key cooldown applied to a notification.
type Kind int

const (
	KindTrade Kind = iota
	KindCrisis
)

// Notifier multiplexes channels and rate-limits by (kind, key).
type Notifier struct {
	logger     *zap.Logger
	httpClient *http.Client
	cfg        types.AlertsConfig

	telegram *tgbotapi.BotAPI
	chatID   int64

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier builds a notifier from config. Channels without credentials
// are silently disabled.
func NewNotifier(logger *zap.Logger, cfg types.AlertsConfig) *Notifier {
	n := &Notifier{
		logger:     logger.Named("alerts"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
		lastSent:   make(map[string]time.Time),
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Warn("telegram init failed", zap.Error(err))
		} else {
			n.telegram = bot
			n.chatID = cfg.TelegramChatID
		}
	}
	return n
}

func (n *Notifier) cooldownFor(kind Kind) time.Duration {
	minutes := n.cfg.TradeCooldownMinutes
	if kind == KindCrisis {
		minutes = n.cfg.CrisisCooldownMinutes
	}
	if minutes <= 0 {
		return 0
	}
	return time.Duration(minutes * float64(time.Minute))
}

// Notify sends one message on all configured channels unless the (kind, key)
// pair is still inside its cooldown.
func (n *Notifier) Notify(ctx context.Context, kind Kind, key, message string) {
	cooldownKey := fmt.Sprintf("%d:%s", kind, key)
	n.mu.Lock()
	if last, ok := n.lastSent[cooldownKey]; ok && time.Since(last) < n.cooldownFor(kind) {
		n.mu.Unlock()
		return
	}
	n.lastSent[cooldownKey] = time.Now()
	n.mu.Unlock()

	if n.telegram != nil {
		msg := tgbotapi.NewMessage(n.chatID, message)
		if _, err := n.telegram.Send(msg); err != nil {
			n.logger.Warn("telegram send failed", zap.Error(err))
		}
	}
	if n.cfg.DiscordWebhookURL != "" {
		n.sendDiscord(ctx, message)
	}
}

// NotifyTrade announces an executed trade, keyed by symbol.
func (n *Notifier) NotifyTrade(ctx context.Context, symbol, message string) {
	n.Notify(ctx, KindTrade, symbol, message)
}

// NotifyCrisis announces a crisis transition, keyed by level.
func (n *Notifier) NotifyCrisis(ctx context.Context, level types.CrisisLevel, message string) {
	n.Notify(ctx, KindCrisis, level.String(), message)
}

func (n *Notifier) sendDiscord(ctx context.Context, message string) {
	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.DiscordWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("discord send failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("discord webhook rejected", zap.Int("status", resp.StatusCode))
	}
}
