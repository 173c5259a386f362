package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/stock-snapshot-monitor/internal/aggregator"
	"github.com/trogers1052/stock-snapshot-monitor/internal/analyzer"
	"github.com/trogers1052/stock-snapshot-monitor/internal/metrics"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
	"github.com/trogers1052/stock-snapshot-monitor/internal/source"
)

// ErrNoData is returned when no symbol produced a snapshot in a cycle
var ErrNoData = errors.New("no snapshot data collected")

const defaultFetchTimeout = 10 * time.Second

// SnapshotStore persists a cycle's snapshots
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snapshots []*models.Snapshot, capturedAt time.Time) (int, error)
}

// Comparer computes deltas against the previously stored cycle
type Comparer interface {
	Compare(ctx context.Context, current []*models.Snapshot) ([]*models.Comparison, error)
}

// EventPublisher receives snapshot and alert events
type EventPublisher interface {
	PublishSnapshots(ctx context.Context, cycleID string, snapshots []*models.Snapshot) error
	PublishAlerts(ctx context.Context, cycleID string, set *models.AlertSet) error
}

// Notifier delivers alert digests to people
type Notifier interface {
	SendAlerts(ctx context.Context, cycleID string, set *models.AlertSet) error
}

// Options wires a Monitor. Publisher, Notifier and Metrics are optional.
type Options struct {
	Symbols      []string
	Sources      []source.Source
	Store        SnapshotStore
	Comparator   Comparer
	Analyzer     *analyzer.Analyzer
	Publisher    EventPublisher
	Notifier     Notifier
	Metrics      *metrics.Metrics
	SymbolDelay  time.Duration
	FetchTimeout time.Duration
	Wait         WaitFunc
	Now          func() time.Time
	Logger       *log.Entry
}

// CycleResult is the outcome of one successful cycle
type CycleResult struct {
	CycleID     string               `json:"cycle_id"`
	CapturedAt  time.Time            `json:"captured_at"`
	Snapshots   []*models.Snapshot   `json:"snapshots"`
	Comparisons []*models.Comparison `json:"comparisons"`
	Alerts      *models.AlertSet     `json:"alerts"`
	Report      string               `json:"report"`
	Saved       int                  `json:"saved"`
}

// Monitor runs capture cycles: collect, aggregate, compare, save, analyze
// and publish
type Monitor struct {
	opts Options
	log  *log.Entry

	// cycleMu keeps a single writer when the API triggers a cycle
	cycleMu sync.Mutex

	mu   sync.RWMutex
	last *CycleResult
}

// New creates a monitor
func New(opts Options) *Monitor {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Wait == nil {
		opts.Wait = Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	opts.Metrics.MonitoredSymbols.Set(float64(len(opts.Symbols)))

	return &Monitor{opts: opts, log: opts.Logger}
}

// Symbols returns the monitored symbols
func (m *Monitor) Symbols() []string {
	return append([]string(nil), m.opts.Symbols...)
}

// LastResult returns the result of the most recent successful cycle
func (m *Monitor) LastResult() *CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run is a Scheduler cycle func
func (m *Monitor) Run(ctx context.Context) error {
	_, err := m.RunCycle(ctx)
	return err
}

// RunCycle performs one full capture cycle. Comparison reads the previous
// cycle, so it happens before the new snapshots are saved. Publishing and
// notification failures are logged and do not fail the cycle.
func (m *Monitor) RunCycle(ctx context.Context) (result *CycleResult, err error) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	started := m.opts.Now()
	cycleID := uuid.NewString()
	logger := m.log.WithField("cycle_id", cycleID)
	defer func() { m.opts.Metrics.ObserveCycle(started, err) }()

	logger.WithField("count", len(m.opts.Symbols)).Info("Starting monitor cycle")

	snapshots, err := m.capture(ctx, logger)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, ErrNoData
	}

	comparisons, err := m.opts.Comparator.Compare(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to compare snapshots: %w", err)
	}

	capturedAt := m.opts.Now()
	saved, err := m.opts.Store.SaveSnapshots(ctx, snapshots, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshots: %w", err)
	}
	m.opts.Metrics.SnapshotsSaved.Add(float64(saved))
	stampComparisons(comparisons, snapshots)

	alerts := m.opts.Analyzer.Analyze(comparisons)
	m.opts.Metrics.AlertsRaised.WithLabelValues("price").Add(float64(len(alerts.SignificantChanges)))
	m.opts.Metrics.AlertsRaised.WithLabelValues("daily_change").Add(float64(len(alerts.DailyChangeAlerts)))

	report := analyzer.Report(alerts)
	logger.Info("\n" + report)

	m.publish(ctx, logger, cycleID, snapshots, alerts)

	result = &CycleResult{
		CycleID:     cycleID,
		CapturedAt:  capturedAt,
		Snapshots:   snapshots,
		Comparisons: comparisons,
		Alerts:      alerts,
		Report:      report,
		Saved:       saved,
	}
	m.mu.Lock()
	m.last = result
	m.mu.Unlock()

	logger.WithFields(log.Fields{
		"count":    saved,
		"duration": time.Since(started).String(),
	}).Info("Monitor cycle complete")
	return result, nil
}

// stampComparisons copies the stored ID and capture time onto the
// comparisons, which were built from the snapshots before they were saved
func stampComparisons(comparisons []*models.Comparison, snapshots []*models.Snapshot) {
	bySymbol := make(map[string]*models.Snapshot, len(snapshots))
	for _, s := range snapshots {
		bySymbol[s.Symbol] = s
	}
	for _, c := range comparisons {
		if s, ok := bySymbol[c.Symbol]; ok {
			c.ID = s.ID
			c.CapturedAt = s.CapturedAt
		}
	}
}

// capture collects and aggregates every symbol in order, pausing between
// symbols
func (m *Monitor) capture(ctx context.Context, logger *log.Entry) ([]*models.Snapshot, error) {
	snapshots := make([]*models.Snapshot, 0, len(m.opts.Symbols))
	for i, symbol := range m.opts.Symbols {
		if i > 0 && m.opts.SymbolDelay > 0 {
			if err := m.opts.Wait(ctx, m.opts.SymbolDelay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		readings := m.collect(ctx, logger, symbol)
		snapshot, err := aggregator.Aggregate(symbol, readings)
		if err != nil {
			m.opts.Metrics.SymbolsSkipped.Inc()
			logger.WithField("symbol", symbol).WithError(err).Warn("Skipping symbol")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// collect queries every source in order. A failing source is logged and
// treated as having no data.
func (m *Monitor) collect(ctx context.Context, logger *log.Entry, symbol string) []models.Reading {
	readings := make([]models.Reading, 0, len(m.opts.Sources))
	for _, src := range m.opts.Sources {
		q, err := m.fetch(ctx, src, symbol)
		m.opts.Metrics.ObserveFetch(src.Name(), err)

		fields := log.Fields{"symbol": symbol, "source": src.Name()}
		switch {
		case err != nil:
			logger.WithFields(fields).WithError(err).Warn("Source fetch failed")
		case q == nil:
			logger.WithFields(fields).Debug("Source returned no quote")
		default:
			readings = append(readings, models.Reading{Source: src.Name(), Quote: q})
		}
	}
	return readings
}

func (m *Monitor) fetch(ctx context.Context, src source.Source, symbol string) (q *models.Quote, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("source panicked: %v", r)
		}
	}()
	return src.Fetch(ctx, symbol)
}

func (m *Monitor) publish(ctx context.Context, logger *log.Entry, cycleID string, snapshots []*models.Snapshot, alerts *models.AlertSet) {
	if p := m.opts.Publisher; p != nil {
		if err := p.PublishSnapshots(ctx, cycleID, snapshots); err != nil {
			m.opts.Metrics.PublishFailures.WithLabelValues("kafka").Inc()
			logger.WithError(err).Error("Failed to publish snapshot events")
		}
		if err := p.PublishAlerts(ctx, cycleID, alerts); err != nil {
			m.opts.Metrics.PublishFailures.WithLabelValues("kafka").Inc()
			logger.WithError(err).Error("Failed to publish alert events")
		}
	}

	if n := m.opts.Notifier; n != nil && alerts.HasAlerts() {
		if err := n.SendAlerts(ctx, cycleID, alerts); err != nil {
			m.opts.Metrics.PublishFailures.WithLabelValues("telegram").Inc()
			logger.WithError(err).Error("Failed to send alert notification")
		}
	}
}
