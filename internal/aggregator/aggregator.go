// Package aggregator merges the readings several sources returned for one
// symbol into a single consensus snapshot.
package aggregator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// ErrInsufficientData is returned when no source supplied a price or no
// source supplied a previous close for a symbol
var ErrInsufficientData = errors.New("insufficient data")

var hundred = decimal.NewFromInt(100)

// Aggregate averages the readings for symbol into one snapshot. Readings
// with a nil quote are ignored. The returned snapshot has no CapturedAt;
// the store assigns it.
func Aggregate(symbol string, readings []models.Reading) (*models.Snapshot, error) {
	var prices, prevCloses []decimal.Decimal
	var sources []string
	company := ""

	for _, r := range readings {
		if r.Quote == nil {
			continue
		}
		contributed := false
		if r.Quote.Price.Valid {
			prices = append(prices, r.Quote.Price.Decimal)
			contributed = true
		}
		if r.Quote.PreviousClose.Valid {
			prevCloses = append(prevCloses, r.Quote.PreviousClose.Decimal)
			contributed = true
		}
		if contributed {
			sources = append(sources, r.Source)
		}
		if company == "" && isKnownCompany(r.Quote.CompanyName) {
			company = strings.TrimSpace(r.Quote.CompanyName)
		}
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("no valid prices for %s: %w", symbol, ErrInsufficientData)
	}
	if len(prevCloses) == 0 {
		return nil, fmt.Errorf("no valid previous close for %s: %w", symbol, ErrInsufficientData)
	}
	if company == "" {
		company = models.UnknownCompany
	}

	price := mean(prices)
	prevClose := mean(prevCloses)

	return &models.Snapshot{
		Symbol:         symbol,
		Company:        company,
		CurrentPrice:   decimal.NewNullDecimal(price),
		PreviousClose:  decimal.NewNullDecimal(prevClose),
		DailyChangePct: DailyChange(price, prevClose),
		Sources:        sources,
	}, nil
}

// DailyChange returns (price - prevClose) / prevClose * 100, or an invalid
// value when prevClose is zero
func DailyChange(price, prevClose decimal.Decimal) decimal.NullDecimal {
	if prevClose.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price.Sub(prevClose).Div(prevClose).Mul(hundred))
}

func mean(values []decimal.Decimal) decimal.Decimal {
	return decimal.Avg(values[0], values[1:]...)
}

func isKnownCompany(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return !strings.EqualFold(name, models.UnknownCompany) && !strings.EqualFold(name, models.NotAvailable)
}
