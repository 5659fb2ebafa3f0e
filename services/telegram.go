package services

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartsensors/config"
	"smartsensors/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const telegramThrottle = 15 * time.Second

// TelegramEscalator forwards error entries to a Telegram chat
type TelegramEscalator struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	logger         *zap.Logger
	mu             sync.Mutex
	lastAlertTimes map[string]time.Time // last alert per component
}

// NewTelegramEscalator creates a new Telegram escalator
func NewTelegramEscalator(cfg *config.Config, logger *zap.Logger) (*TelegramEscalator, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing chat ID: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &TelegramEscalator{
		bot:            bot,
		chatID:         chatID,
		logger:         logger,
		lastAlertTimes: make(map[string]time.Time),
	}, nil
}

func (ts *TelegramEscalator) Name() string { return "telegram" }

// Escalate sends error entries; warnings and throttled components are skipped
func (ts *TelegramEscalator) Escalate(ctx context.Context, entry models.LogEntry) error {
	if entry.Level != models.LevelError {
		return nil
	}
	if ts.shouldThrottle(entry.Component, time.Now()) {
		ts.logger.Debug("Throttling telegram alert", zap.String("component", entry.Component))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(ts.chatID, formatLogMessage(entry))
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := ts.bot.Send(msg); err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}

	ts.logger.Info("Sent telegram alert",
		zap.String("component", entry.Component),
		zap.String("entry_id", entry.ID))
	return nil
}

// shouldThrottle reports whether component alerted within the throttle window,
// and records now as its last alert otherwise
func (ts *TelegramEscalator) shouldThrottle(component string, now time.Time) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if last, ok := ts.lastAlertTimes[component]; ok && now.Sub(last) < telegramThrottle {
		return true
	}
	ts.lastAlertTimes[component] = now
	return false
}

func formatLogMessage(entry models.LogEntry) string {
	var sb strings.Builder

	sb.WriteString("🚨 <b>SMART SENSORS ERROR</b>\n\n")
	sb.WriteString(fmt.Sprintf("🧩 <b>Component:</b> %s\n", html.EscapeString(entry.Component)))
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05")))
	if entry.Context.URL != "" {
		sb.WriteString(fmt.Sprintf("🔗 <b>URL:</b> %s\n", html.EscapeString(entry.Context.URL)))
	}
	sb.WriteString(fmt.Sprintf("\n%s", html.EscapeString(entry.Message)))

	if data, ok := entry.Data.(map[string]any); ok {
		if cause, ok := data["error"].(string); ok && cause != "" {
			sb.WriteString(fmt.Sprintf("\n<code>%s</code>", html.EscapeString(cause)))
		}
	}

	return sb.String()
}
