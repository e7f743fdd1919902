package market

import (
	"fmt"
	"strings"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "Long"
	Short Side = "Short"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

func (s Side) Valid() bool { return s == Long || s == Short }

func (s Side) String() string { return string(s) }
