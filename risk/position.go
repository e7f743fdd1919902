package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SizingMode selects how an order amount is derived.
type SizingMode int

const (
	// Fixed spends a fixed amount of quote currency per open.
	Fixed SizingMode = iota
	// Percent spends a percentage of current capital per open.
	Percent
)

// Sizing is the position sizing rule. In config files it is either a number
// (quote currency amount) or a string such as "2.5%".
type Sizing struct {
	Mode  SizingMode
	Value decimal.Decimal
}

var ErrNoQuantity = errors.New("position size resolves to zero quantity")

func FixedAmount(v float64) Sizing { return Sizing{Mode: Fixed, Value: decimal.NewFromFloat(v)} }

func PercentOfCapital(p float64) Sizing {
	return Sizing{Mode: Percent, Value: decimal.NewFromFloat(p)}
}

// ParseSizing accepts "250", "250.5" or "5%".
func ParseSizing(s string) (Sizing, error) {
	s = strings.TrimSpace(s)
	mode := Fixed
	if strings.HasSuffix(s, "%") {
		mode = Percent
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Sizing{}, fmt.Errorf("invalid position size %q", s)
	}
	return Sizing{Mode: mode, Value: v}, nil
}

func (s Sizing) String() string {
	if s.Mode == Percent {
		return s.Value.String() + "%"
	}
	return s.Value.String()
}

func (s Sizing) Validate() error {
	if !s.Value.IsPositive() {
		return errors.New("position_size must be positive")
	}
	if s.Mode == Percent && s.Value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("position_size percent must be at most 100%")
	}
	return nil
}

// Amount returns the quote currency to spend given current capital.
func (s Sizing) Amount(capital decimal.Decimal) decimal.Decimal {
	if s.Mode == Percent {
		return capital.Mul(s.Value).Div(decimal.NewFromInt(100))
	}
	return s.Value
}

// Quantity converts the sizing rule into an asset quantity at price.
func (s Sizing) Quantity(capital, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("sizing: price must be positive, got %s", price)
	}
	qty := s.Amount(capital).DivRound(price, 8)
	if !qty.IsPositive() {
		return decimal.Zero, ErrNoQuantity
	}
	return qty, nil
}

func (s Sizing) MarshalJSON() ([]byte, error) {
	if s.Mode == Percent {
		return json.Marshal(s.String())
	}
	return []byte(s.Value.String()), nil
}

func (s *Sizing) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		v, err := ParseSizing(str)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("position_size must be a number or a percent string")
	}
	v, err := ParseSizing(f.String())
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Sizing) MarshalYAML() (any, error) {
	if s.Mode == Percent {
		return s.String(), nil
	}
	f, _ := s.Value.Float64()
	return f, nil
}

func (s *Sizing) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("position_size must be a scalar")
	}
	v, err := ParseSizing(n.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
