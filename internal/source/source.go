package source

import (
	"context"
	"errors"

	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

const (
	YahooName        = "Yahoo Finance"
	AlphaVantageName = "Alpha Vantage"
)

// ErrNoQuote is returned when a provider answered but had nothing usable
// for the symbol
var ErrNoQuote = errors.New("no quote available")

// Source fetches a single quote from one provider. Implementations must
// honor ctx cancellation.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*models.Quote, error)
}

// Validator reports whether a provider knows the symbol
type Validator interface {
	IsValid(ctx context.Context, symbol string) (bool, error)
}
