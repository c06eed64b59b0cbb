package currencyutils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Converter converts an amount between currencies. Rate lookup lives outside the engine.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// IdentityConverter returns amounts unchanged.
type IdentityConverter struct{}

func (IdentityConverter) Convert(amount decimal.Decimal, _, _ string) (decimal.Decimal, error) {
	return amount, nil
}

// RateTable converts through fixed rates expressed against a single base currency.
type RateTable struct {
	base  string
	mu    sync.RWMutex
	rates map[string]decimal.Decimal // units of base per 1 unit of currency
}

// NewRateTable builds a RateTable for base. rates maps ISO code to units of base per unit.
func NewRateTable(base string, rates map[string]string) (*RateTable, error) {
	rt := &RateTable{
		base:  strings.ToUpper(base),
		rates: make(map[string]decimal.Decimal, len(rates)+1),
	}
	rt.rates[rt.base] = decimal.NewFromInt(1)
	for code, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		rt.rates[strings.ToUpper(code)] = rate
	}
	return rt, nil
}

// Convert converts amount from one currency to another through the base currency.
func (rt *RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	rt.mu.RLock()
	fromRate, okFrom := rt.rates[from]
	toRate, okTo := rt.rates[to]
	rt.mu.RUnlock()

	if !okFrom {
		return decimal.Zero, fmt.Errorf("no rate for %s", from)
	}
	if !okTo {
		return decimal.Zero, fmt.Errorf("no rate for %s", to)
	}
	return amount.Mul(fromRate).Div(toRate).Round(2), nil
}
