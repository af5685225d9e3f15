package pipeline

import (
	"fmt"

	"github.com/spf13/viper"
)

// Limits holds the business-rule limits the stage transforms enforce.
type Limits struct {
	// MaxOrderQuantity is the largest order quantity validation accepts.
	MaxOrderQuantity int64
	// MaxNettedAmount is the clearing risk limit: a netted amount strictly
	// above it fails the trade.
	MaxNettedAmount float64
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxOrderQuantity: 10_000,
		MaxNettedAmount:  1_000_000.0,
	}
}

// LoadLimits reads the stage limits from environment variables.
func LoadLimits() (Limits, error) {
	v := viper.New()

	v.SetDefault("MAX_ORDER_QUANTITY", 10_000)
	v.SetDefault("MAX_NETTED_AMOUNT", 1_000_000.0)

	v.AutomaticEnv()

	limits := Limits{
		MaxOrderQuantity: v.GetInt64("MAX_ORDER_QUANTITY"),
		MaxNettedAmount:  v.GetFloat64("MAX_NETTED_AMOUNT"),
	}

	if limits.MaxOrderQuantity <= 0 {
		return Limits{}, fmt.Errorf("MAX_ORDER_QUANTITY must be positive, got %d", limits.MaxOrderQuantity)
	}
	if limits.MaxNettedAmount <= 0 {
		return Limits{}, fmt.Errorf("MAX_NETTED_AMOUNT must be positive, got %f", limits.MaxNettedAmount)
	}
	return limits, nil
}
