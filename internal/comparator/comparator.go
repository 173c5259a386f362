package comparator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/database"
	"github.com/trogers1052/stock-snapshot-monitor/internal/format"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// SnapshotReader provides the most recent stored capture
type SnapshotReader interface {
	GetLatestSnapshots(ctx context.Context) ([]*models.Snapshot, error)
}

// Comparator enriches current snapshots with deltas against the previous
// poll. It must run before the current snapshots are saved.
type Comparator struct {
	store SnapshotReader
	log   *log.Entry
}

// New creates a comparator reading previous snapshots from store
func New(store SnapshotReader, logger *log.Entry) *Comparator {
	return &Comparator{store: store, log: logger}
}

// Compare returns one comparison per current snapshot, in input order.
// Missing previous data leaves the delta fields invalid.
func (c *Comparator) Compare(ctx context.Context, current []*models.Snapshot) ([]*models.Comparison, error) {
	previous, err := c.store.GetLatestSnapshots(ctx)
	if err != nil && !errors.Is(err, database.ErrNoSnapshots) {
		return nil, fmt.Errorf("failed to load previous snapshots: %w", err)
	}
	if len(previous) == 0 {
		c.log.Info("No previous snapshots to compare against")
	}

	bySymbol := make(map[string]*models.Snapshot, len(previous))
	for _, p := range previous {
		bySymbol[p.Symbol] = p
	}

	comparisons := make([]*models.Comparison, 0, len(current))
	for _, s := range current {
		if s == nil {
			continue
		}
		cmp := &models.Comparison{Snapshot: *s}
		if prev, ok := bySymbol[s.Symbol]; ok {
			c.fillPrice(cmp, prev)
			c.fillDailyChange(cmp, prev)
		}
		comparisons = append(comparisons, cmp)
	}
	return comparisons, nil
}

func (c *Comparator) fillPrice(cmp *models.Comparison, prev *models.Snapshot) {
	prevPrice, err := format.ParsePrice(prev.CurrentPrice)
	if err != nil {
		c.conversionFailed(cmp.Symbol, "previous_price", err)
		return
	}
	cmp.PreviousPrice = decimal.NewNullDecimal(prevPrice)

	curPrice, err := format.ParsePrice(cmp.CurrentPrice)
	if err != nil {
		c.conversionFailed(cmp.Symbol, "current_price", err)
		return
	}
	cmp.PriceChange = decimal.NewNullDecimal(curPrice.Sub(prevPrice))
}

func (c *Comparator) fillDailyChange(cmp *models.Comparison, prev *models.Snapshot) {
	prevDaily, err := format.ParsePercent(prev.DailyChangePct)
	if err != nil {
		c.conversionFailed(cmp.Symbol, "previous_daily_change_pct", err)
		return
	}
	cmp.PreviousDailyChangePct = decimal.NewNullDecimal(prevDaily)

	curDaily, err := format.ParsePercent(cmp.DailyChangePct)
	if err != nil {
		c.conversionFailed(cmp.Symbol, "daily_change_pct", err)
		return
	}
	cmp.ChangeInDailyChangePct = decimal.NewNullDecimal(curDaily.Sub(prevDaily))
}

func (c *Comparator) conversionFailed(symbol, field string, err error) {
	entry := c.log.WithFields(log.Fields{"symbol": symbol, "field": field})
	if errors.Is(err, format.ErrNotAvailable) {
		entry.Debug("Value not available for comparison")
		return
	}
	entry.WithError(err).Warn("Failed to convert value for comparison")
}
