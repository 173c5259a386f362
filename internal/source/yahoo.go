package source

import (
	"context"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// QuoteFunc looks up a single Yahoo Finance quote
type QuoteFunc func(symbol string) (*finance.Quote, error)

// Yahoo is the Yahoo Finance source, backed by finance-go
type Yahoo struct {
	get QuoteFunc
}

// YahooOption configures a Yahoo source
type YahooOption func(*Yahoo)

// WithQuoteFunc replaces the finance-go lookup
func WithQuoteFunc(f QuoteFunc) YahooOption {
	return func(y *Yahoo) {
		y.get = f
	}
}

// NewYahoo creates a Yahoo Finance source
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{get: quote.Get}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string { return YahooName }

// Fetch returns the regular market price and previous close. The
// finance-go call is not cancellable, so it is abandoned when ctx ends.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := y.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result := &models.Quote{
		Price:         positive(q.RegularMarketPrice),
		PreviousClose: positive(q.RegularMarketPreviousClose),
		CompanyName:   strings.TrimSpace(q.ShortName),
	}
	if !result.Price.Valid && !result.PreviousClose.Valid {
		return nil, errors.Wrapf(ErrNoQuote, "yahoo %s", symbol)
	}
	return result, nil
}

// IsValid reports whether Yahoo has a market price for the symbol
func (y *Yahoo) IsValid(ctx context.Context, symbol string) (bool, error) {
	q, err := y.lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, ErrNoQuote) {
			return false, nil
		}
		return false, err
	}
	return q.RegularMarketPrice > 0, nil
}

func (y *Yahoo) lookup(ctx context.Context, symbol string) (*finance.Quote, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	done := make(chan result, 1)
	go func() {
		q, err := y.get(symbol)
		done <- result{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "yahoo %s", symbol)
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "yahoo %s", symbol)
		}
		if r.q == nil {
			return nil, errors.Wrapf(ErrNoQuote, "yahoo %s", symbol)
		}
		return r.q, nil
	}
}

func positive(v float64) decimal.NullDecimal {
	if v <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}
