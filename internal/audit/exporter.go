package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shopbooking/internal/metrics"
	"shopbooking/internal/model"
)

// Source lists reschedule requests created in [from, to).
type Source interface {
	ListRequestsByShop(ctx context.Context, shopID string, from, to time.Time) ([]model.RescheduleRequest, error)
}

// Config holds configuration for the audit exporter.
type Config struct {
	// ExportDir receives scheduled workbooks. Default: "exports".
	ExportDir string

	// Interval between scheduled exports. Default: 24 hours.
	Interval time.Duration

	// Lookback is the window covered by a scheduled export. Default: 7 days.
	Lookback time.Duration
}

var requestColumns = []string{
	"request_id", "order_id", "shop_id", "customer_address",
	"original_date", "original_time_slot", "requested_date", "requested_time_slot",
	"status", "customer_reason", "shop_response_reason", "responded_by", "responded_at",
	"created_at", "expires_at",
}

var statusOrder = []model.RescheduleStatus{
	model.RescheduleStatusPending,
	model.RescheduleStatusApproved,
	model.RescheduleStatusRejected,
	model.RescheduleStatusCancelled,
	model.RescheduleStatusExpired,
}

const timestampLayout = "2006-01-02 15:04:05"

// Exporter writes reschedule history to XLSX workbooks.
type Exporter struct {
	config Config
	source Source
	logger zerolog.Logger
	now    func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewExporter creates an exporter over source.
func NewExporter(cfg Config, source Source, logger zerolog.Logger) *Exporter {
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7 * 24 * time.Hour
	}
	return &Exporter{
		config: cfg,
		source: source,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// Export writes the requests of shopID (every shop when empty) created in
// [from, to) to wr. It returns the number of request rows written.
func (e *Exporter) Export(ctx context.Context, shopID string, from, to time.Time, wr io.Writer) (int, error) {
	requests, err := e.source.ListRequestsByShop(ctx, shopID, from, to)
	if err != nil {
		return 0, fmt.Errorf("list requests: %w", err)
	}

	wb := newWorkbook()
	defer func() { _ = wb.close() }()

	if err := wb.addSheet("Requests"); err != nil {
		return 0, err
	}
	if err := wb.writeHeader(requestColumns); err != nil {
		return 0, err
	}
	counts := make(map[model.RescheduleStatus]int)
	for i := range requests {
		r := &requests[i]
		counts[r.Status]++
		if err := wb.writeRow(requestRow(r)); err != nil {
			return 0, fmt.Errorf("write request %s: %w", r.RequestID, err)
		}
	}

	if err := wb.addSheet("Summary"); err != nil {
		return 0, err
	}
	if err := wb.writeHeader([]string{"status", "count"}); err != nil {
		return 0, err
	}
	for _, status := range statusOrder {
		if err := wb.writeRow([]interface{}{string(status), counts[status]}); err != nil {
			return 0, err
		}
	}
	if err := wb.writeRow([]interface{}{"total", len(requests)}); err != nil {
		return 0, err
	}

	if err := wb.save(wr); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return len(requests), nil
}

// ExportToFile exports into the configured directory and returns the file path.
func (e *Exporter) ExportToFile(ctx context.Context, shopID string, from, to time.Time) (string, int, error) {
	var buf bytes.Buffer
	n, err := e.Export(ctx, shopID, from, to, &buf)
	if err != nil {
		metrics.IncAuditExport("error")
		return "", 0, err
	}

	if err := os.MkdirAll(e.config.ExportDir, 0o755); err != nil {
		metrics.IncAuditExport("error")
		return "", 0, fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.config.ExportDir, Filename(shopID, from, to))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		metrics.IncAuditExport("error")
		return "", 0, fmt.Errorf("write export: %w", err)
	}

	metrics.IncAuditExport("ok")
	return path, n, nil
}

// Filename builds a name like "reschedule_requests_all_20260301_20260308.xlsx".
func Filename(shopID string, from, to time.Time) string {
	if shopID == "" {
		shopID = "all"
	}
	return fmt.Sprintf("reschedule_requests_%s_%s_%s.xlsx", shopID, from.UTC().Format("20060102"), to.UTC().Format("20060102"))
}

// Start runs a lookback export every interval until Stop.
func (e *Exporter) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(e.stopCh)

	e.logger.Info().Dur("interval", e.config.Interval).Str("dir", e.config.ExportDir).Msg("Audit exporter started")
}

// Stop halts the loop.
func (e *Exporter) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info().Msg("Audit exporter stopped")
}

func (e *Exporter) loop(stop <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.RunScheduled()
		}
	}
}

// RunScheduled exports the lookback window ending now for every shop.
func (e *Exporter) RunScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	to := e.now()
	from := to.Add(-e.config.Lookback)
	path, n, err := e.ExportToFile(ctx, "", from, to)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to export reschedule audit")
		return
	}
	e.logger.Info().Str("path", path).Int("requests", n).Msg("Reschedule audit exported")
}

func requestRow(r *model.RescheduleRequest) []interface{} {
	respondedAt := ""
	if r.RespondedAt != nil {
		respondedAt = r.RespondedAt.UTC().Format(timestampLayout)
	}
	return []interface{}{
		r.RequestID, r.OrderID, r.ShopID, r.CustomerAddress,
		r.OriginalDate, r.OriginalTimeSlot, r.RequestedDate, r.RequestedTimeSlot,
		string(r.Status), r.CustomerReason, r.ShopResponseReason, r.RespondedBy, respondedAt,
		r.CreatedAt.UTC().Format(timestampLayout), r.ExpiresAt.UTC().Format(timestampLayout),
	}
}
