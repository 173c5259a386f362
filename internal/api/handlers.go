package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/database"
	"github.com/trogers1052/stock-snapshot-monitor/internal/format"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
	"github.com/trogers1052/stock-snapshot-monitor/internal/monitor"
)

const (
	dateLayout        = "2006-01-02"
	defaultLimit      = 50
	maxLimit          = 1000
	defaultHistoryDay = 30
)

// SnapshotQuerier is the read side of the snapshot store
type SnapshotQuerier interface {
	GetLatestSnapshots(ctx context.Context) ([]*models.Snapshot, error)
	GetSnapshotsBySymbol(ctx context.Context, symbol string, limit int) ([]*models.Snapshot, error)
	GetDailySummary(ctx context.Context, date time.Time) ([]*models.DailySummary, error)
	GetSummaryHistory(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.DailySummary, error)
	Health(ctx context.Context) error
}

// CycleRunner exposes the monitor to the API
type CycleRunner interface {
	LastResult() *monitor.CycleResult
	RunCycle(ctx context.Context) (*monitor.CycleResult, error)
	Symbols() []string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store   SnapshotQuerier
	monitor CycleRunner
	metrics http.Handler
	log     *log.Entry
}

// NewHandler creates a new Handler. monitor and metrics may be nil.
func NewHandler(store SnapshotQuerier, runner CycleRunner, metrics http.Handler, logger *log.Entry) *Handler {
	return &Handler{
		store:   store,
		monitor: runner,
		metrics: metrics,
		log:     logger,
	}
}

// SnapshotView is the display form of a snapshot
type SnapshotView struct {
	CapturedAt    time.Time `json:"captured_at"`
	Symbol        string    `json:"symbol"`
	Company       string    `json:"company"`
	CurrentPrice  string    `json:"current_price"`
	PreviousClose string    `json:"previous_close"`
	DailyChange   string    `json:"daily_change"`
	Sources       string    `json:"sources"`
}

// DailySummaryView is the display form of a daily rollup
type DailySummaryView struct {
	Date          string `json:"date"`
	Symbol        string `json:"symbol"`
	Company       string `json:"company"`
	OpeningPrice  string `json:"opening_price"`
	ClosingPrice  string `json:"closing_price"`
	HighPrice     string `json:"high_price"`
	LowPrice      string `json:"low_price"`
	AveragePrice  string `json:"average_price"`
	OpeningChange string `json:"opening_change"`
	ClosingChange string `json:"closing_change"`
	Sources       string `json:"sources"`
	SnapshotCount int    `json:"snapshot_count"`
}

// AlertsView is the last cycle's analysis
type AlertsView struct {
	CycleID    string           `json:"cycle_id"`
	CapturedAt time.Time        `json:"captured_at"`
	Alerts     *models.AlertSet `json:"alerts"`
	Report     string           `json:"report"`
}

// GetLatestSnapshots handles GET /snapshots/latest
func (h *Handler) GetLatestSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.store.GetLatestSnapshots(r.Context())
	if errors.Is(err, database.ErrNoSnapshots) {
		respondError(w, http.StatusNotFound, "no snapshots captured yet")
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshotViews(snapshots))
}

// GetSymbolSnapshots handles GET /snapshots/{symbol}
func (h *Handler) GetSymbolSnapshots(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	snapshots, err := h.store.GetSnapshotsBySymbol(r.Context(), symbol, limit)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if len(snapshots) == 0 {
		respondError(w, http.StatusNotFound, "no snapshots for "+symbol)
		return
	}

	respondJSON(w, http.StatusOK, snapshotViews(snapshots))
}

// GetDailySummary handles GET /summary/daily?date=YYYY-MM-DD
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	summaries, err := h.store.GetDailySummary(r.Context(), date)
	if err != nil {
		h.serverError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summaryViews(summaries))
}

// GetSummaryHistory handles GET /summary/{symbol}/history?start=&end=
func (h *Handler) GetSummaryHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	end := time.Now()
	start := end.AddDate(0, 0, -defaultHistoryDay)
	var err error
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = time.Parse(dateLayout, raw); err != nil {
			respondError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = time.Parse(dateLayout, raw); err != nil {
			respondError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	summaries, err := h.store.GetSummaryHistory(r.Context(), symbol, start, end)
	if err != nil {
		h.serverError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summaryViews(summaries))
}

// GetLatestAlerts handles GET /alerts/latest
func (h *Handler) GetLatestAlerts(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respondError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}
	result := h.monitor.LastResult()
	if result == nil {
		respondError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}

	respondJSON(w, http.StatusOK, alertsView(result))
}

// TriggerCycle handles POST /cycles by running one capture cycle
func (h *Handler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respondError(w, http.StatusServiceUnavailable, "monitor is not running")
		return
	}

	result, err := h.monitor.RunCycle(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Triggered cycle failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, alertsView(result))
}

// GetSymbols handles GET /symbols
func (h *Handler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := []string{}
	if h.monitor != nil {
		symbols = h.monitor.Symbols()
	}
	respondJSON(w, http.StatusOK, symbols)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func snapshotViews(snapshots []*models.Snapshot) []SnapshotView {
	views := make([]SnapshotView, 0, len(snapshots))
	for _, s := range snapshots {
		views = append(views, SnapshotView{
			CapturedAt:    s.CapturedAt,
			Symbol:        s.Symbol,
			Company:       s.Company,
			CurrentPrice:  format.FormatNullPrice(s.CurrentPrice),
			PreviousClose: format.FormatNullPrice(s.PreviousClose),
			DailyChange:   format.FormatNullPercent(s.DailyChangePct),
			Sources:       s.SourcesLabel(),
		})
	}
	return views
}

func summaryViews(summaries []*models.DailySummary) []DailySummaryView {
	views := make([]DailySummaryView, 0, len(summaries))
	for _, d := range summaries {
		sources := models.NotAvailable
		if len(d.Sources) > 0 {
			sources = strings.Join(d.Sources, models.SourceSeparator)
		}
		views = append(views, DailySummaryView{
			Date:          d.Date.Format(dateLayout),
			Symbol:        d.Symbol,
			Company:       d.Company,
			OpeningPrice:  format.FormatPrice(d.OpeningPrice),
			ClosingPrice:  format.FormatPrice(d.ClosingPrice),
			HighPrice:     format.FormatPrice(d.HighPrice),
			LowPrice:      format.FormatPrice(d.LowPrice),
			AveragePrice:  format.FormatPrice(d.AveragePrice),
			OpeningChange: format.FormatNullPercent(d.OpeningChangePct),
			ClosingChange: format.FormatNullPercent(d.ClosingChangePct),
			Sources:       sources,
			SnapshotCount: d.SnapshotCount,
		})
	}
	return views
}

func alertsView(result *monitor.CycleResult) AlertsView {
	return AlertsView{
		CycleID:    result.CycleID,
		CapturedAt: result.CapturedAt,
		Alerts:     result.Alerts,
		Report:     result.Report,
	}
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("Request failed")
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
