package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// ErrNoSnapshots is returned when the snapshot table is empty
var ErrNoSnapshots = errors.New("no snapshots stored")

const dateLayout = "2006-01-02"

// priceScale matches the NUMERIC(12, 2) price columns
const priceScale = 2

const snapshotColumns = `id, captured_at, symbol, company, current_price, previous_close, daily_change_pct, sources`

// SaveSnapshots appends one row per snapshot, all captured at capturedAt
// (now when zero). Snapshots without a current price and previous close
// that stay positive at cent precision are logged and skipped. Any storage error aborts the
// whole batch. Saved snapshots get their ID and CapturedAt set.
func (db *DB) SaveSnapshots(ctx context.Context, snapshots []*models.Snapshot, capturedAt time.Time) (int, error) {
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	capturedAt = capturedAt.Truncate(time.Microsecond)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_snapshots (captured_at, symbol, company, current_price, previous_close, daily_change_pct, sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, s := range snapshots {
		if reason := invalidReason(s); reason != "" {
			db.log.WithFields(log.Fields{"symbol": symbolOf(s), "reason": reason}).Warn("Skipping malformed snapshot")
			continue
		}

		company := s.Company
		if company == "" {
			company = models.UnknownCompany
		}

		var id int64
		err := stmt.QueryRowContext(ctx,
			capturedAt, s.Symbol, company, s.CurrentPrice.Decimal, s.PreviousClose.Decimal,
			s.DailyChangePct, s.SourcesLabel(),
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot for %s: %w", s.Symbol, err)
		}
		s.ID = id
		s.CapturedAt = capturedAt
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.log.WithFields(log.Fields{"count": saved, "captured_at": capturedAt}).Info("Saved snapshots")
	return saved, nil
}

// GetLatestSnapshots returns every row of the most recent capture, in
// insertion order
func (db *DB) GetLatestSnapshots(ctx context.Context) ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM stock_snapshots
		WHERE captured_at = (SELECT MAX(captured_at) FROM stock_snapshots)
		ORDER BY id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshots: %w", err)
	}

	snapshots, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}
	return snapshots, nil
}

// GetSnapshotsBySymbol returns the most recent snapshots of a symbol,
// newest first
func (db *DB) GetSnapshotsBySymbol(ctx context.Context, symbol string, limit int) ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM stock_snapshots
		WHERE symbol = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots for %s: %w", symbol, err)
	}
	return scanSnapshots(rows)
}

// GetDailySummary returns the rollup of every symbol observed on date,
// ordered by symbol. A zero date means the current date of the database
// session, the same clock the view buckets rows by.
func (db *DB) GetDailySummary(ctx context.Context, date time.Time) ([]*models.DailySummary, error) {
	var day sql.NullString
	label := "today"
	if !date.IsZero() {
		day = sql.NullString{String: date.Format(dateLayout), Valid: true}
		label = day.String
	}
	query := `
		SELECT date, symbol, company, opening_price, closing_price, high_price, low_price,
		       average_price, opening_change_pct, closing_change_pct, sources, snapshot_count
		FROM daily_summary
		WHERE date = COALESCE($1::date, CURRENT_DATE)
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary for %s: %w", label, err)
	}
	return scanDailySummaries(rows)
}

// GetSummaryHistory returns the daily rollups of a symbol between two
// dates inclusive, oldest first
func (db *DB) GetSummaryHistory(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.DailySummary, error) {
	query := `
		SELECT date, symbol, company, opening_price, closing_price, high_price, low_price,
		       average_price, opening_change_pct, closing_change_pct, sources, snapshot_count
		FROM daily_summary
		WHERE symbol = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, startDate.Format(dateLayout), endDate.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get summary history for %s: %w", symbol, err)
	}
	return scanDailySummaries(rows)
}

func scanSnapshots(rows *sql.Rows) ([]*models.Snapshot, error) {
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		var price, prevClose decimal.Decimal
		var sources string

		err := rows.Scan(
			&s.ID, &s.CapturedAt, &s.Symbol, &s.Company, &price, &prevClose, &s.DailyChangePct, &sources,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.CurrentPrice = decimal.NewNullDecimal(price)
		s.PreviousClose = decimal.NewNullDecimal(prevClose)
		s.Sources = models.ParseSources(sources)
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func scanDailySummaries(rows *sql.Rows) ([]*models.DailySummary, error) {
	defer rows.Close()

	var summaries []*models.DailySummary
	for rows.Next() {
		var d models.DailySummary
		var company, sources sql.NullString

		err := rows.Scan(
			&d.Date, &d.Symbol, &company, &d.OpeningPrice, &d.ClosingPrice, &d.HighPrice, &d.LowPrice,
			&d.AveragePrice, &d.OpeningChangePct, &d.ClosingChangePct, &sources, &d.SnapshotCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}

		d.Company = models.UnknownCompany
		if company.Valid {
			d.Company = company.String
		}
		if sources.Valid {
			d.Sources = models.ParseSources(sources.String)
		}
		summaries = append(summaries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily summaries: %w", err)
	}
	return summaries, nil
}

func invalidReason(s *models.Snapshot) string {
	switch {
	case s == nil:
		return "nil snapshot"
	case s.Symbol == "":
		return "missing symbol"
	case !s.CurrentPrice.Valid:
		return "missing current price"
	case !s.PreviousClose.Valid:
		return "missing previous close"
	case !s.CurrentPrice.Decimal.Round(priceScale).IsPositive():
		return "non-positive current price"
	case !s.PreviousClose.Decimal.Round(priceScale).IsPositive():
		return "non-positive previous close"
	}
	return ""
}

func symbolOf(s *models.Snapshot) string {
	if s == nil {
		return ""
	}
	return s.Symbol
}
