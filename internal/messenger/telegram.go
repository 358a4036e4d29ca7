package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// Telegram delivers responses through a Telegram bot. Destinations are
// numeric chat ids.
type Telegram struct {
	token    string
	tenantID string
	logger   *slog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

type TelegramConfig struct {
	Token    string
	TenantID string
	Logger   *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{
		token:    cfg.Token,
		tenantID: cfg.TenantID,
		logger:   cfg.Logger,
	}
}

func (t *Telegram) Name() string     { return "telegram" }
func (t *Telegram) Configured() bool { return t.token != "" }

// connect lazily initializes the bot client on first send.
func (t *Telegram) connect() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "tenant", t.tenantID)
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Send(ctx context.Context, resp domain.OutboundResponse) (string, error) {
	if !t.Configured() {
		return "", fmt.Errorf("telegram not configured for tenant %s", t.tenantID)
	}

	chatID, err := strconv.ParseInt(resp.To, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram destination %q is not a chat id: %w", resp.To, err)
	}

	bot, err := t.connect()
	if err != nil {
		return "", err
	}

	sent, err := bot.Send(tgbotapi.NewMessage(chatID, resp.Text))
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}

	t.logger.Info("telegram message sent", "message_id", sent.MessageID, "tenant", t.tenantID)
	return strconv.Itoa(sent.MessageID), nil
}
