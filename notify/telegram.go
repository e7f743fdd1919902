package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const TelegramURL = "https://api.telegram.org"

// Telegram sends messages through the Bot API.
type Telegram struct {
	baseURL  string
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
	BaseURL  string
	Timeout  time.Duration
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = TelegramURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		baseURL:  cfg.BaseURL,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool { return t.enabled }

func (t *Telegram) Notify(ctx context.Context, e Event) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     e.Text(),
		"disable_web_page_preview": true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
