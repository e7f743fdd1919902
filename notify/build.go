package notify

import (
	"github.com/rs/zerolog"

	"github.com/rustyeddy/simtrader/config"
)

// ForSimulation builds the manager used by one simulation worker. Chat
// channels are added only when both the simulation toggle and the process
// level switch are on and the credentials are present.
func ForSimulation(log zerolog.Logger, rec Recorder, nc config.NotifyConfig, secrets config.Secrets, sim config.Simulation) *Manager {
	m := NewManager(log, rec, NewLog(log))
	timeout := nc.TimeoutDuration()

	if sim.TelegramEnabled && nc.Telegram {
		m.AddNotifier(NewTelegram(TelegramConfig{
			BotToken: secrets.TelegramBotToken,
			ChatID:   secrets.TelegramChatID,
			Enabled:  true,
			Timeout:  timeout,
		}))
	}
	if sim.DiscordEnabled && nc.Discord {
		m.AddNotifier(NewDiscord(DiscordConfig{
			WebhookURL: secrets.DiscordWebhookURL,
			Enabled:    true,
			Timeout:    timeout,
		}))
	}
	return m
}

