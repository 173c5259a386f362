package analyzer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/format"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// NoChangesReport is rendered when an analysis raised no alerts, whether
// or not any symbol could be compared
const NoChangesReport = "No significant changes detected."

// DefaultThreshold is the default alert threshold in percent
var DefaultThreshold = decimal.NewFromFloat(5.0)

var hundred = decimal.NewFromInt(100)

// Analyzer flags moves at or above a percentage threshold
type Analyzer struct {
	threshold decimal.Decimal
	log       *log.Entry
}

// New creates an analyzer. A non-positive threshold falls back to
// DefaultThreshold.
func New(threshold decimal.Decimal, logger *log.Entry) *Analyzer {
	if !threshold.IsPositive() {
		threshold = DefaultThreshold
	}
	return &Analyzer{threshold: threshold, log: logger}
}

// Threshold returns the alert threshold in percent
func (a *Analyzer) Threshold() decimal.Decimal { return a.threshold }

// Analyze builds the alert set for a batch of comparisons. Records without
// both a current and previous price are counted but never alert.
func (a *Analyzer) Analyze(records []*models.Comparison) *models.AlertSet {
	set := &models.AlertSet{
		Threshold:          a.threshold,
		SignificantChanges: []models.PriceAlert{},
		DailyChangeAlerts:  []models.DailyChangeAlert{},
		Summary:            models.AlertSummary{TotalSymbols: len(records)},
	}

	for _, r := range records {
		if r == nil || !r.CurrentPrice.Valid || !r.PreviousPrice.Valid {
			continue
		}
		set.Summary.ComparedSymbols++

		if alert, ok := a.priceAlert(r); ok {
			set.SignificantChanges = append(set.SignificantChanges, alert)
			set.Summary.SignificantChanges++
			if alert.Direction == models.DirectionIncrease {
				set.Summary.PositiveChanges++
			} else {
				set.Summary.NegativeChanges++
			}
		}

		if alert, ok := a.dailyChangeAlert(r); ok {
			set.DailyChangeAlerts = append(set.DailyChangeAlerts, alert)
		}
	}

	a.log.WithFields(log.Fields{
		"total":         set.Summary.TotalSymbols,
		"compared":      set.Summary.ComparedSymbols,
		"price_alerts":  len(set.SignificantChanges),
		"daily_alerts":  len(set.DailyChangeAlerts),
		"threshold_pct": a.threshold.String(),
	}).Info("Analyzed price changes")
	return set
}

func (a *Analyzer) priceAlert(r *models.Comparison) (models.PriceAlert, bool) {
	prev := r.PreviousPrice.Decimal
	if prev.IsZero() {
		return models.PriceAlert{}, false
	}
	cur := r.CurrentPrice.Decimal
	pct := cur.Sub(prev).Div(prev).Mul(hundred)
	if pct.Abs().LessThan(a.threshold) {
		return models.PriceAlert{}, false
	}

	direction := models.DirectionDecrease
	if pct.IsPositive() {
		direction = models.DirectionIncrease
	}
	return models.PriceAlert{
		Symbol:        r.Symbol,
		Company:       r.Company,
		CurrentPrice:  cur,
		PreviousPrice: prev,
		ChangePct:     pct,
		Direction:     direction,
	}, true
}

func (a *Analyzer) dailyChangeAlert(r *models.Comparison) (models.DailyChangeAlert, bool) {
	if !r.ChangeInDailyChangePct.Valid || !r.DailyChangePct.Valid || !r.PreviousDailyChangePct.Valid {
		return models.DailyChangeAlert{}, false
	}
	diff := r.ChangeInDailyChangePct.Decimal
	if diff.Abs().LessThan(a.threshold) {
		return models.DailyChangeAlert{}, false
	}
	return models.DailyChangeAlert{
		Symbol:                 r.Symbol,
		Company:                r.Company,
		CurrentDailyChangePct:  r.DailyChangePct.Decimal,
		PreviousDailyChangePct: r.PreviousDailyChangePct.Decimal,
		ChangeDiff:             diff,
	}, true
}

// Report renders an alert set as plain text
func Report(set *models.AlertSet) string {
	if set == nil || !set.HasAlerts() {
		return NoChangesReport
	}

	var b strings.Builder
	b.WriteString("Price Movement Analysis Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	b.WriteString("\nSummary:\n")
	fmt.Fprintf(&b, "Total Symbols Analyzed: %d\n", set.Summary.TotalSymbols)
	fmt.Fprintf(&b, "Symbols Compared: %d\n", set.Summary.ComparedSymbols)
	fmt.Fprintf(&b, "Significant Changes Detected: %d\n", set.Summary.SignificantChanges)
	fmt.Fprintf(&b, "Positive Changes: %d\n", set.Summary.PositiveChanges)
	fmt.Fprintf(&b, "Negative Changes: %d\n", set.Summary.NegativeChanges)

	if len(set.SignificantChanges) > 0 {
		b.WriteString("\nSignificant Price Changes:\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		for _, c := range set.SignificantChanges {
			fmt.Fprintf(&b, "%s %s (%s): %s → %s (%s)\n",
				arrow(c.Direction == models.DirectionIncrease), c.Symbol, c.Company,
				format.FormatPrice(c.PreviousPrice), format.FormatPrice(c.CurrentPrice), format.FormatPercent(c.ChangePct))
		}
	}

	if len(set.DailyChangeAlerts) > 0 {
		b.WriteString("\nSignificant Daily Change Changes:\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		for _, d := range set.DailyChangeAlerts {
			fmt.Fprintf(&b, "%s %s (%s): Daily Change: %s → %s (Change: %s)\n",
				arrow(d.ChangeDiff.IsPositive()), d.Symbol, d.Company,
				format.FormatPercent(d.PreviousDailyChangePct), format.FormatPercent(d.CurrentDailyChangePct), format.FormatPercent(d.ChangeDiff))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func arrow(up bool) string {
	if up {
		return "↑"
	}
	return "↓"
}
