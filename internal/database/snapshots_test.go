package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

func newSnapshot(symbol string, price, prevClose float64, sources ...string) *models.Snapshot {
	p := decimal.NewFromFloat(price)
	pc := decimal.NewFromFloat(prevClose)
	return &models.Snapshot{
		Symbol:         symbol,
		Company:        symbol + " Corp",
		CurrentPrice:   decimal.NewNullDecimal(p),
		PreviousClose:  decimal.NewNullDecimal(pc),
		DailyChangePct: decimal.NewNullDecimal(p.Sub(pc).Div(pc).Mul(decimal.NewFromInt(100))),
		Sources:        sources,
	}
}

func TestSnapshotRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("GetLatestSnapshots returns ErrNoSnapshots on empty storage", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetLatestSnapshots(ctx)
		require.ErrorIs(t, err, ErrNoSnapshots)
	})

	t.Run("SaveSnapshots then GetLatestSnapshots returns the latest capture", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
		second := first.Add(5 * time.Minute)

		_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{
			newSnapshot("AAPL", 180.00, 178.00, "Yahoo Finance"),
			newSnapshot("MSFT", 370.00, 368.00, "Yahoo Finance"),
		}, first)
		require.NoError(t, err)

		latest := []*models.Snapshot{
			newSnapshot("MSFT", 372.50, 368.00, "Yahoo Finance", "Alpha Vantage"),
			newSnapshot("AAPL", 181.25, 178.00, "Yahoo Finance"),
			newSnapshot("NVDA", 480.10, 470.00, "Alpha Vantage"),
		}
		saved, err := testDB.SaveSnapshots(ctx, latest, second)
		require.NoError(t, err)
		assert.Equal(t, 3, saved)

		retrieved, err := testDB.GetLatestSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, retrieved, 3)

		// insertion order is preserved
		assert.Equal(t, "MSFT", retrieved[0].Symbol)
		assert.Equal(t, "AAPL", retrieved[1].Symbol)
		assert.Equal(t, "NVDA", retrieved[2].Symbol)

		for i, s := range retrieved {
			assert.True(t, second.Equal(s.CapturedAt), "row %d captured at %s", i, s.CapturedAt)
			assert.Equal(t, latest[i].ID, s.ID)
		}
		assert.True(t, decimal.NewFromFloat(372.50).Equal(retrieved[0].CurrentPrice.Decimal))
		assert.Equal(t, []string{"Yahoo Finance", "Alpha Vantage"}, retrieved[0].Sources)
		assert.Equal(t, "MSFT Corp", retrieved[0].Company)
		require.True(t, retrieved[0].DailyChangePct.Valid)
		assert.Equal(t, "1.22", retrieved[0].DailyChangePct.Decimal.StringFixed(2))
	})

	t.Run("SaveSnapshots skips malformed rows and keeps the batch", func(t *testing.T) {
		testDB.TruncateAll(t)

		missingPrice := newSnapshot("BAD", 1, 1)
		missingPrice.CurrentPrice = decimal.NullDecimal{}
		zeroClose := newSnapshot("ZERO", 10, 1)
		zeroClose.PreviousClose = decimal.NewNullDecimal(decimal.Zero)
		noDailyChange := newSnapshot("GOOD", 140.00, 139.00)
		noDailyChange.DailyChangePct = decimal.NullDecimal{}

		saved, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{missingPrice, zeroClose, noDailyChange, nil}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, saved)

		retrieved, err := testDB.GetLatestSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, retrieved, 1)
		assert.Equal(t, "GOOD", retrieved[0].Symbol)
		assert.False(t, retrieved[0].DailyChangePct.Valid)

		warnings := 0
		for _, e := range testDB.logHook.AllEntries() {
			if e.Level == logrus.WarnLevel {
				warnings++
			}
		}
		assert.Equal(t, 3, warnings)
	})

	t.Run("SaveSnapshots skips prices that round to zero cents", func(t *testing.T) {
		testDB.TruncateAll(t)

		subPenny := newSnapshot("PENNY", 0.004, 0.005)
		good := newSnapshot("GOOD", 25.10, 25.00)

		saved, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{subPenny, good}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, saved)
		assert.Zero(t, subPenny.ID)

		retrieved, err := testDB.GetLatestSnapshots(ctx)
		require.NoError(t, err)
		require.Len(t, retrieved, 1)
		assert.Equal(t, "GOOD", retrieved[0].Symbol)
	})

	t.Run("GetDailySummary without a date uses the database current date", func(t *testing.T) {
		testDB.TruncateAll(t)

		var now time.Time
		require.NoError(t, testDB.conn.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now))

		_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("TODAY", 50, 49)}, now)
		require.NoError(t, err)

		summary, err := testDB.GetDailySummary(ctx, time.Time{})
		require.NoError(t, err)
		require.Len(t, summary, 1)
		assert.Equal(t, "TODAY", summary[0].Symbol)
	})

	t.Run("SaveSnapshots rejects duplicate symbol within one capture", func(t *testing.T) {
		testDB.TruncateAll(t)

		ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{
			newSnapshot("DUP", 10, 10),
			newSnapshot("DUP", 11, 10),
		}, ts)
		require.Error(t, err)

		// the batch is aborted as a whole
		_, err = testDB.GetLatestSnapshots(ctx)
		require.ErrorIs(t, err, ErrNoSnapshots)
	})

	t.Run("GetDailySummary rolls up one day", func(t *testing.T) {
		testDB.TruncateAll(t)

		day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		prices := []float64{100, 105, 98}
		for i, p := range prices {
			_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("TSLA", p, 100, "Yahoo Finance")},
				day.Add(time.Duration(14+i)*time.Hour))
			require.NoError(t, err)
		}
		// a row on the next day must not be included
		_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("TSLA", 200, 100, "Yahoo Finance")},
			day.Add(30*time.Hour))
		require.NoError(t, err)

		summary, err := testDB.GetDailySummary(ctx, day.Add(12*time.Hour))
		require.NoError(t, err)
		require.Len(t, summary, 1)

		s := summary[0]
		assert.Equal(t, "TSLA", s.Symbol)
		assert.Equal(t, "TSLA Corp", s.Company)
		assert.True(t, decimal.NewFromInt(100).Equal(s.OpeningPrice), "opening %s", s.OpeningPrice)
		assert.True(t, decimal.NewFromInt(98).Equal(s.ClosingPrice), "closing %s", s.ClosingPrice)
		assert.True(t, decimal.NewFromInt(105).Equal(s.HighPrice), "high %s", s.HighPrice)
		assert.True(t, decimal.NewFromInt(98).Equal(s.LowPrice), "low %s", s.LowPrice)
		assert.True(t, decimal.NewFromInt(101).Equal(s.AveragePrice), "average %s", s.AveragePrice)
		assert.Equal(t, "0.00", s.OpeningChangePct.Decimal.StringFixed(2))
		assert.Equal(t, "-2.00", s.ClosingChangePct.Decimal.StringFixed(2))
		assert.Equal(t, 3, s.SnapshotCount)
		assert.Equal(t, 15, s.Date.Day())
	})

	t.Run("GetDailySummary keeps one group when sources change mid-day", func(t *testing.T) {
		testDB.TruncateAll(t)

		day := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
		_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("AMD", 120, 118, "Yahoo Finance", "Alpha Vantage")}, day)
		require.NoError(t, err)
		_, err = testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("AMD", 122, 118, "Yahoo Finance")}, day.Add(time.Hour))
		require.NoError(t, err)

		summary, err := testDB.GetDailySummary(ctx, day)
		require.NoError(t, err)
		require.Len(t, summary, 1)
		assert.Equal(t, []string{"Yahoo Finance"}, summary[0].Sources)
		assert.Equal(t, 2, summary[0].SnapshotCount)
	})

	t.Run("GetDailySummary returns empty for a day without data", func(t *testing.T) {
		testDB.TruncateAll(t)

		summary, err := testDB.GetDailySummary(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Empty(t, summary)
	})

	t.Run("GetSummaryHistory returns one rollup per day", func(t *testing.T) {
		testDB.TruncateAll(t)

		start := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{
				newSnapshot("NVDA", 450+float64(i), 440, "Yahoo Finance"),
				newSnapshot("AAPL", 180, 178, "Yahoo Finance"),
			}, start.AddDate(0, 0, i))
			require.NoError(t, err)
		}

		history, err := testDB.GetSummaryHistory(ctx, "NVDA", start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, 2, history[0].Date.Day())
		assert.True(t, decimal.NewFromInt(451).Equal(history[0].ClosingPrice))
		assert.Equal(t, 4, history[2].Date.Day())
	})

	t.Run("GetSnapshotsBySymbol returns newest first with limit", func(t *testing.T) {
		testDB.TruncateAll(t)

		base := time.Date(2024, 4, 1, 14, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			_, err := testDB.SaveSnapshots(ctx, []*models.Snapshot{newSnapshot("META", 300+float64(i), 299)}, base.Add(time.Duration(i)*5*time.Minute))
			require.NoError(t, err)
		}

		snaps, err := testDB.GetSnapshotsBySymbol(ctx, "META", 2)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.True(t, decimal.NewFromInt(303).Equal(snaps[0].CurrentPrice.Decimal))
		assert.True(t, decimal.NewFromInt(302).Equal(snaps[1].CurrentPrice.Decimal))
		assert.Empty(t, snaps[0].Sources)
	})
}
