package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse safety_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow is a single row from safety_events.
type EventRow struct {
	EventID           string    `json:"event_id"`
	Timestamp         time.Time `json:"timestamp"`
	Kind              string    `json:"kind"`
	RiskLevel         string    `json:"risk_level"`
	Source            string    `json:"source"`
	Reasons           []string  `json:"reasons"`
	FailClosed        bool      `json:"fail_closed"`
	ResponseMode      string    `json:"response_mode"`
	Channel           string    `json:"channel"`
	NLULatencyMs      float64   `json:"nlu_latency_ms"`
	SemanticLatencyMs float64   `json:"semantic_latency_ms"`
}

// RecentEvents returns a user's latest events, newest first.
func (r *Reader) RecentEvents(ctx context.Context, userID string, limit int) ([]EventRow, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT event_id, timestamp, kind, risk_level, source, reasons, fail_closed, "+
			"response_mode, channel, nlu_latency_ms, semantic_latency_ms "+
			"FROM safety_events WHERE user_id = @user_id "+
			"ORDER BY timestamp DESC LIMIT @limit",
		clickhouse.Named("user_id", userID),
		clickhouse.Named("limit", uint32(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("RecentEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []EventRow{}
	for rows.Next() {
		var (
			e          EventRow
			failClosed uint8
		)
		if err := rows.Scan(
			&e.EventID, &e.Timestamp, &e.Kind, &e.RiskLevel, &e.Source, &e.Reasons, &failClosed,
			&e.ResponseMode, &e.Channel, &e.NLULatencyMs, &e.SemanticLatencyMs,
		); err != nil {
			return nil, fmt.Errorf("RecentEvents scan: %w", err)
		}
		e.FailClosed = failClosed == 1
		events = append(events, e)
	}
	return events, rows.Err()
}

// LevelCounts holds detection counts per risk level.
type LevelCounts struct {
	Low        int `json:"low"`
	Medium     int `json:"medium"`
	High       int `json:"high"`
	Extreme    int `json:"extreme"`
	FailClosed int `json:"fail_closed"`
}

// ChannelCounts holds triage decision counts per channel.
type ChannelCounts struct {
	Green  int `json:"green"`
	Yellow int `json:"yellow"`
	Red    int `json:"red"`
}

// DailyBucket holds the number of HIGH or EXTREME detections on one day.
type DailyBucket struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// LatencyStats holds detection latency percentiles in milliseconds.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// UserAnalytics holds all per-user aggregations.
type UserAnalytics struct {
	UserID          string        `json:"user_id"`
	Days            int           `json:"days"`
	Levels          LevelCounts   `json:"levels"`
	Channels        ChannelCounts `json:"channels"`
	HighRiskPerDay  []DailyBucket `json:"high_risk_per_day"`
	DetectLatencyMs LatencyStats  `json:"detect_latency_ms"`
}

// GetUserAnalytics aggregates a user's events over the last days.
func (r *Reader) GetUserAnalytics(ctx context.Context, userID string, days int) (*UserAnalytics, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	args := []any{
		clickhouse.Named("user_id", userID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &UserAnalytics{UserID: userID, Days: days}

	var low, medium, high, extreme, failClosed uint64
	err := r.conn.QueryRow(ctx,
		"SELECT countIf(risk_level = 'low'), countIf(risk_level = 'medium'), "+
			"countIf(risk_level = 'high'), countIf(risk_level = 'extreme'), "+
			"countIf(fail_closed = 1) "+
			"FROM safety_events "+
			"WHERE user_id = @user_id AND kind = 'detection' AND timestamp >= @range_start",
		args...,
	).Scan(&low, &medium, &high, &extreme, &failClosed)
	if err != nil {
		return nil, fmt.Errorf("GetUserAnalytics levels: %w", err)
	}
	result.Levels = LevelCounts{
		Low: int(low), Medium: int(medium), High: int(high), Extreme: int(extreme),
		FailClosed: int(failClosed),
	}

	var green, yellow, red uint64
	err = r.conn.QueryRow(ctx,
		"SELECT countIf(channel = 'green'), countIf(channel = 'yellow'), countIf(channel = 'red') "+
			"FROM safety_events "+
			"WHERE user_id = @user_id AND kind = 'triage' AND timestamp >= @range_start",
		args...,
	).Scan(&green, &yellow, &red)
	if err != nil {
		return nil, fmt.Errorf("GetUserAnalytics channels: %w", err)
	}
	result.Channels = ChannelCounts{Green: int(green), Yellow: int(yellow), Red: int(red)}

	dayRows, err := r.conn.Query(ctx,
		"SELECT toStartOfDay(timestamp) AS day, count() AS count "+
			"FROM safety_events "+
			"WHERE user_id = @user_id AND kind = 'detection' "+
			"AND risk_level IN ('high', 'extreme') AND timestamp >= @range_start "+
			"GROUP BY day ORDER BY day",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetUserAnalytics high_risk_per_day: %w", err)
	}
	defer func() { _ = dayRows.Close() }()
	result.HighRiskPerDay = []DailyBucket{}
	for dayRows.Next() {
		var day time.Time
		var count uint64
		if err := dayRows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("GetUserAnalytics high_risk_per_day scan: %w", err)
		}
		result.HighRiskPerDay = append(result.HighRiskPerDay, DailyBucket{
			Day:   day.Format("2006-01-02"),
			Count: int(count),
		})
	}

	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(nlu_latency_ms + semantic_latency_ms), "+
			"quantile(0.95)(nlu_latency_ms + semantic_latency_ms), "+
			"quantile(0.99)(nlu_latency_ms + semantic_latency_ms) "+
			"FROM safety_events "+
			"WHERE user_id = @user_id AND kind = 'detection' AND timestamp >= @range_start",
		args...,
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetUserAnalytics latency: %w", err)
	}
	result.DetectLatencyMs = LatencyStats{P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99)}

	return result, nil
}

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for quantile() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
