package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/simtrader/market"
	"github.com/rustyeddy/simtrader/risk"
)

// AI providers accepted in simulation configs. grok is an alias of xai.
var AIProviders = []string{"anthropic", "xai", "grok", "deepseek"}

// Simulation is the configuration of one paper-trading simulation. It is
// stored with the simulation record and handed to the worker.
type Simulation struct {
	Name                 string      `json:"name,omitempty" yaml:"name,omitempty"`
	Symbol               string      `json:"symbol" yaml:"symbol"`
	CryptoDisplayName    string      `json:"crypto_display_name" yaml:"crypto_display_name"`
	InitialCapital       float64     `json:"initial_capital" yaml:"initial_capital"`
	PositionSize         risk.Sizing `json:"position_size" yaml:"position_size"`
	FeeRate              float64     `json:"fee_rate" yaml:"fee_rate"`
	AIProvider           string      `json:"ai_provider" yaml:"ai_provider"`
	StopLossPercent      *float64    `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	MaxDailyTrades       int         `json:"max_daily_trades" yaml:"max_daily_trades"`
	CheckIntervalSeconds int         `json:"check_interval_seconds" yaml:"check_interval_seconds"`
	TelegramEnabled      bool        `json:"telegram_enabled" yaml:"telegram_enabled"`
	DiscordEnabled       bool        `json:"discord_enabled" yaml:"discord_enabled"`
	IncludeReasoning     bool        `json:"include_reasoning" yaml:"include_reasoning"`
}

// DefaultSimulation returns a BTC simulation with the stock limits.
func DefaultSimulation() Simulation {
	stop := 10.0
	return Simulation{
		Symbol:               "BTCUSDT",
		CryptoDisplayName:    "Bitcoin",
		InitialCapital:       10000,
		PositionSize:         risk.FixedAmount(5),
		FeeRate:              0.0006,
		AIProvider:           "anthropic",
		StopLossPercent:      &stop,
		MaxDailyTrades:       10,
		CheckIntervalSeconds: 300,
		IncludeReasoning:     true,
	}
}

// ParseSimulation decodes YAML or JSON onto the defaults, so omitted fields
// keep their default values.
func ParseSimulation(data []byte) (Simulation, error) {
	// The display name follows the parsed symbol unless set explicitly.
	s := DefaultSimulation()
	s.CryptoDisplayName = ""
	if err := yaml.Unmarshal(data, &s); err != nil {
		s = DefaultSimulation()
		s.CryptoDisplayName = ""
		if err := json.Unmarshal(data, &s); err != nil {
			return Simulation{}, fmt.Errorf("parse simulation config (tried YAML and JSON): %w", err)
		}
	}
	s.Normalize()
	return s, nil
}

func LoadSimulationFile(path string) (Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Simulation{}, fmt.Errorf("read simulation config: %w", err)
	}
	return ParseSimulation(data)
}

// Normalize canonicalizes the provider name and fills the display name.
func (s *Simulation) Normalize() {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.AIProvider = strings.ToLower(strings.TrimSpace(s.AIProvider))
	if s.CryptoDisplayName == "" && s.Symbol != "" {
		s.CryptoDisplayName = market.DisplayName(s.Symbol)
	}
}

// Validate checks field ranges. Messages name the offending field.
func (s Simulation) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if s.InitialCapital < 100 {
		return fmt.Errorf("initial_capital must be at least 100")
	}
	if err := s.PositionSize.Validate(); err != nil {
		return err
	}
	if s.FeeRate < 0 || s.FeeRate >= 1 {
		return fmt.Errorf("fee_rate must be in [0, 1)")
	}
	if !validProvider(s.AIProvider) {
		return fmt.Errorf("ai_provider must be one of %s", strings.Join(AIProviders, ", "))
	}
	if s.StopLossPercent != nil && (*s.StopLossPercent < 0.1 || *s.StopLossPercent > 50) {
		return fmt.Errorf("stop_loss_percent must be between 0.1 and 50")
	}
	if s.MaxDailyTrades < 1 || s.MaxDailyTrades > 100 {
		return fmt.Errorf("max_daily_trades must be between 1 and 100")
	}
	if s.CheckIntervalSeconds < 60 || s.CheckIntervalSeconds > 3600 {
		return fmt.Errorf("check_interval_seconds must be between 60 and 3600")
	}
	return nil
}

func validProvider(p string) bool {
	for _, v := range AIProviders {
		if p == v {
			return true
		}
	}
	return false
}

func (s Simulation) CheckInterval() time.Duration {
	return time.Duration(s.CheckIntervalSeconds) * time.Second
}

func (s Simulation) InitialCapitalDecimal() decimal.Decimal {
	return decimal.NewFromFloat(s.InitialCapital)
}

func (s Simulation) FeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(s.FeeRate)
}

// StopLoss returns the stop-loss percent, or zero when disabled.
func (s Simulation) StopLoss() decimal.Decimal {
	if s.StopLossPercent == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*s.StopLossPercent)
}

// JSON is the canonical stored form of the config.
func (s Simulation) JSON() ([]byte, error) {
	return json.Marshal(s)
}
