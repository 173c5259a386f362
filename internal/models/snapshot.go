package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCompany is stored when no source reported a company name
const UnknownCompany = "unknown"

// NotAvailable is the display placeholder for missing values
const NotAvailable = "N/A"

// SourceSeparator joins contributing source names for display and storage
const SourceSeparator = " + "

// Snapshot represents one reading of one symbol at one capture instant.
// (CapturedAt, Symbol) is unique in storage.
type Snapshot struct {
	ID             int64               `json:"id,omitempty"`
	CapturedAt     time.Time           `json:"captured_at"`
	Symbol         string              `json:"symbol"`
	Company        string              `json:"company"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	PreviousClose  decimal.NullDecimal `json:"previous_close"`
	DailyChangePct decimal.NullDecimal `json:"daily_change_pct"`
	Sources        []string            `json:"sources"`
}

// SourcesLabel renders the contributing sources as "A + B"
func (s *Snapshot) SourcesLabel() string {
	if len(s.Sources) == 0 {
		return NotAvailable
	}
	return strings.Join(s.Sources, SourceSeparator)
}

// ParseSources splits a stored sources label back into names
func ParseSources(label string) []string {
	label = strings.TrimSpace(label)
	if label == "" || label == NotAvailable {
		return nil
	}
	parts := strings.Split(label, SourceSeparator)
	sources := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sources = append(sources, p)
		}
	}
	return sources
}

// DailySummary is the per-date, per-symbol rollup derived from snapshots
type DailySummary struct {
	Date             time.Time           `json:"date"`
	Symbol           string              `json:"symbol"`
	Company          string              `json:"company"`
	OpeningPrice     decimal.Decimal     `json:"opening_price"`
	ClosingPrice     decimal.Decimal     `json:"closing_price"`
	HighPrice        decimal.Decimal     `json:"high_price"`
	LowPrice         decimal.Decimal     `json:"low_price"`
	AveragePrice     decimal.Decimal     `json:"average_price"`
	OpeningChangePct decimal.NullDecimal `json:"opening_change_pct"`
	ClosingChangePct decimal.NullDecimal `json:"closing_change_pct"`
	Sources          []string            `json:"sources"`
	SnapshotCount    int                 `json:"snapshot_count"`
}

// Comparison is a current snapshot enriched with deltas against the
// previous poll of the same symbol. Delta fields stay invalid when no
// previous reading exists or a value could not be converted.
type Comparison struct {
	Snapshot
	PreviousPrice          decimal.NullDecimal `json:"previous_price"`
	PriceChange            decimal.NullDecimal `json:"price_change"`
	PreviousDailyChangePct decimal.NullDecimal `json:"previous_daily_change_pct"`
	ChangeInDailyChangePct decimal.NullDecimal `json:"change_in_daily_change_pct"`
}

// HasPrevious reports whether a previous price was found for the symbol
func (c *Comparison) HasPrevious() bool {
	return c.PreviousPrice.Valid
}
