package market

import (
	"fmt"
	"strings"
)

// Signal is the directional outlook returned by an advisor.
type Signal string

const (
	Bullish Signal = "Bullish"
	Bearish Signal = "Bearish"
	Neutral Signal = "Neutral"
)

// ParseSignal accepts the three outlook words in any case.
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bullish":
		return Bullish, nil
	case "bearish":
		return Bearish, nil
	case "neutral":
		return Neutral, nil
	}
	return "", fmt.Errorf("unknown signal %q", s)
}

func (s Signal) Valid() bool {
	return s == Bullish || s == Bearish || s == Neutral
}

func (s Signal) String() string { return string(s) }
