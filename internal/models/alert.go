package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction constants
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
)

// Event type constants
const (
	EventSnapshotCaptured = "SNAPSHOT_CAPTURED"
	EventPriceAlert       = "PRICE_ALERT"
	EventDailyChangeAlert = "DAILY_CHANGE_ALERT"
)

// PriceAlert is raised when the price moved at least the threshold
// percentage since the previous poll
type PriceAlert struct {
	Symbol        string          `json:"symbol"`
	Company       string          `json:"company"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	ChangePct     decimal.Decimal `json:"change_pct"`
	Direction     string          `json:"direction"`
}

// DailyChangeAlert is raised when the daily change percentage itself moved
// at least the threshold since the previous poll
type DailyChangeAlert struct {
	Symbol                 string          `json:"symbol"`
	Company                string          `json:"company"`
	CurrentDailyChangePct  decimal.Decimal `json:"current_daily_change_pct"`
	PreviousDailyChangePct decimal.Decimal `json:"previous_daily_change_pct"`
	ChangeDiff             decimal.Decimal `json:"change_diff"`
}

// AlertSummary tallies an analysis run. Positive/negative counts only
// consider price alerts.
type AlertSummary struct {
	TotalSymbols       int `json:"total_symbols"`
	ComparedSymbols    int `json:"compared_symbols"`
	SignificantChanges int `json:"significant_changes"`
	PositiveChanges    int `json:"positive_changes"`
	NegativeChanges    int `json:"negative_changes"`
}

// AlertSet is the structured result of analyzing one set of comparisons
type AlertSet struct {
	Threshold          decimal.Decimal    `json:"threshold"`
	SignificantChanges []PriceAlert       `json:"significant_changes"`
	DailyChangeAlerts  []DailyChangeAlert `json:"daily_change_alerts"`
	Summary            AlertSummary       `json:"summary"`
}

// HasAlerts reports whether any alert of either kind was raised
func (a *AlertSet) HasAlerts() bool {
	return len(a.SignificantChanges) > 0 || len(a.DailyChangeAlerts) > 0
}

// MonitorEvent is published to Kafka for snapshots and alerts
type MonitorEvent struct {
	EventType        string            `json:"event_type"`
	CycleID          string            `json:"cycle_id"`
	Symbol           string            `json:"symbol"`
	Snapshot         *Snapshot         `json:"snapshot,omitempty"`
	PriceAlert       *PriceAlert       `json:"price_alert,omitempty"`
	DailyChangeAlert *DailyChangeAlert `json:"daily_change_alert,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}
