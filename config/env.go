package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets are read from the environment only and never written to config
// files, logs or the database.
type Secrets struct {
	AnthropicAPIKey   string
	XAIAPIKey         string
	DeepSeekAPIKey    string
	TelegramBotToken  string
	TelegramChatID    string
	DiscordWebhookURL string
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func SecretsFromEnv() Secrets {
	return Secrets{
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		XAIAPIKey:         os.Getenv("XAI_API_KEY"),
		DeepSeekAPIKey:    os.Getenv("DEEPSEEK_API_KEY"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
	}
}

// ApplyEnv lets SIMTRADER_DB_DRIVER, SIMTRADER_DB and LOG_LEVEL override the
// file configuration.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("SIMTRADER_DB_DRIVER")); v != "" {
		c.Store.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("SIMTRADER_DB")); v != "" {
		c.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
}
