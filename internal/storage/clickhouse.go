package storage

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/Xanaaash/MiMind-sub000/internal/metrics"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

const createSafetyEvents = `
CREATE TABLE IF NOT EXISTS safety_events (
	event_id                   String,
	user_id                    String,
	timestamp                  DateTime64(3, 'UTC'),
	kind                       LowCardinality(String),
	risk_level                 LowCardinality(String),
	source                     LowCardinality(String),
	reasons                    Array(String),
	fail_closed                UInt8,
	response_mode              LowCardinality(String),
	channel                    LowCardinality(String),
	halt_coaching              UInt8,
	ops_notified               UInt8,
	emergency_contact_notified UInt8,
	text_hash                  String,
	text_size                  UInt32,
	nlu_latency_ms             Float64,
	semantic_latency_ms        Float64
) ENGINE = MergeTree
ORDER BY (user_id, timestamp)`

// ClickHouseWriter writes safety events to ClickHouse asynchronously.
// Write() is non-blocking; events are buffered and batch-inserted in a
// background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *SafetyEvent
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseWriter opens the connection, ensures the table exists and
// starts the background flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	if err := conn.Exec(ctx, createSafetyEvents); err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *SafetyEvent, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w, nil
}

// Write queues an event. Drops it if the buffer is full.
func (w *ClickHouseWriter) Write(event *SafetyEvent) {
	select {
	case w.buffer <- event:
	default:
		metrics.RecordAnalyticsDropped()
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_id", event.EventID),
		)
	}
}

// Close signals the flush loop to drain remaining events, waits for it to
// finish (up to drainTimeout), and closes the connection. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
	_ = w.conn.Close()
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*SafetyEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []*SafetyEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO safety_events (
			event_id, user_id, timestamp, kind,
			risk_level, source, reasons, fail_closed,
			response_mode, channel, halt_coaching,
			ops_notified, emergency_contact_notified,
			text_hash, text_size, nlu_latency_ms, semantic_latency_ms
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.UserID,
			e.Timestamp,
			e.Kind,
			e.RiskLevel,
			e.Source,
			e.Reasons,
			boolToUint8(e.FailClosed),
			e.ResponseMode,
			e.Channel,
			boolToUint8(e.HaltCoaching),
			boolToUint8(e.OpsNotified),
			boolToUint8(e.EmergencyContactNotified),
			e.TextHash,
			e.TextSize,
			e.NLULatencyMs,
			e.SemanticLatencyMs,
		); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback EventWriter for local development.
// It logs events as structured JSON via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *SafetyEvent) {
	w.logger.Info("safety_event",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("kind", event.Kind),
		zap.String("risk_level", event.RiskLevel),
		zap.String("source", event.Source),
		zap.Strings("reasons", event.Reasons),
		zap.Bool("fail_closed", event.FailClosed),
		zap.String("response_mode", event.ResponseMode),
		zap.String("channel", event.Channel),
		zap.String("text_hash", event.TextHash),
		zap.Uint32("text_size", event.TextSize),
	)
}

func (w *LogWriter) Close() {}
