package risk

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the risk limits the engine enforces. It is supplied at
// engine construction and may be replaced wholesale at runtime, but is
// never partially mutated mid-pipeline.
type Config struct {
	// MaxPositionPct caps a single position's notional as % of equity.
	MaxPositionPct decimal.Decimal `yaml:"max_position_pct"`
	// MaxLeverage caps derived leverage; signals needing more reject.
	MaxLeverage int `yaml:"max_leverage"`
	// DailyLossLimitPct halts trading once daily realized losses reach
	// this % of equity.
	DailyLossLimitPct decimal.Decimal `yaml:"daily_loss_limit_pct"`
	// MaxPositions caps concurrent open positions.
	MaxPositions int `yaml:"max_positions"`
	// RiskPerTradePct is the equity fraction risked per trade when the
	// signal does not fix its own size.
	RiskPerTradePct decimal.Decimal `yaml:"risk_per_trade_pct"`
	// QtyStep is the exchange's minimum quantity step; derived sizes
	// are rounded down to it.
	QtyStep decimal.Decimal `yaml:"qty_step"`
}

// DefaultConfig mirrors the limits the service shipped with.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:    decimal.NewFromInt(10),
		MaxLeverage:       10,
		DailyLossLimitPct: decimal.NewFromInt(5),
		MaxPositions:      5,
		RiskPerTradePct:   decimal.NewFromInt(1),
		QtyStep:           decimal.NewFromFloat(0.001),
	}
}

// Validate rejects configs that would make every evaluation fail.
func (c Config) Validate() error {
	if !c.MaxPositionPct.IsPositive() {
		return errors.New("risk config: max_position_pct must be positive")
	}
	if c.MaxLeverage < 1 {
		return errors.New("risk config: max_leverage must be >= 1")
	}
	if !c.DailyLossLimitPct.IsPositive() {
		return errors.New("risk config: daily_loss_limit_pct must be positive")
	}
	if c.MaxPositions < 1 {
		return errors.New("risk config: max_positions must be >= 1")
	}
	if !c.RiskPerTradePct.IsPositive() {
		return errors.New("risk config: risk_per_trade_pct must be positive")
	}
	if !c.QtyStep.IsPositive() {
		return errors.New("risk config: qty_step must be positive")
	}
	return nil
}

// LoadConfig reads limits from a YAML file, falling back to defaults
// for omitted fields.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read risk config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse risk config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
