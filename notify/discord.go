package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	colorGreen  = 0x00FF00
	colorRed    = 0xFF0000
	colorYellow = 0xFFCC00
	colorBlue   = 0x3498DB
)

// Discord posts embeds to a webhook.
type Discord struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
	Timeout    time.Duration
}

func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Discord{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Enabled() bool { return d.enabled }

func embedColor(e Event) int {
	switch e.Type {
	case Error:
		return colorRed
	case Warning:
		return colorYellow
	case TradeClosed:
		if e.PnL.IsNegative() {
			return colorRed
		}
	case SimulationStatus, Signal:
		return colorBlue
	}
	return colorGreen
}

func (d *Discord) Notify(ctx context.Context, e Event) error {
	if !d.enabled {
		return nil
	}

	embed := map[string]any{
		"title":       e.Title,
		"description": e.Message,
		"color":       embedColor(e),
		"timestamp":   e.Time.Format(time.RFC3339),
	}
	var fields []map[string]any
	if e.Symbol != "" {
		fields = append(fields, map[string]any{"name": "Symbol", "value": e.Symbol, "inline": true})
	}
	for _, f := range e.Fields {
		fields = append(fields, map[string]any{"name": f.Name, "value": f.Value, "inline": true})
	}
	if len(fields) > 0 {
		embed["fields"] = fields
	}
	if e.Simulation != "" {
		embed["footer"] = map[string]any{"text": e.Simulation}
	}

	data, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create discord request: %w", stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord message: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}
