package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
)

// Client writes search analytics events and answers operator queries
// over them. The marketplace runs fine without it: callers treat a nil
// client as "analytics disabled".
type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

// WriteSearchEvent records one search analytics row. Implements the
// slow query detector's analytics writer.
func (c *Client) WriteSearchEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	query := `
		INSERT INTO search_events (
			event_type, query_hash, search_index, intent, duration_ms,
			total_hits, degraded, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.Index,
		event.Intent,
		event.DurationMs,
		event.TotalHits,
		event.Degraded,
		event.Timestamp,
		event.TraceID,
	)
}

// IntentBreakdown is one row of the intent distribution report.
type IntentBreakdown struct {
	Intent        string  `json:"intent"`
	Searches      int64   `json:"searches"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	Degraded      int64   `json:"degraded"`
}

// QueryIntentBreakdown aggregates recorded searches by intent over a
// trailing window. Backs the operator analytics endpoint.
func (c *Client) QueryIntentBreakdown(ctx context.Context, window time.Duration) ([]IntentBreakdown, error) {
	ctx, span := observability.StartSpan(ctx, "ch.intent_breakdown",
		attribute.String("window", window.String()),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT
			intent,
			count() AS searches,
			avg(duration_ms) AS avg_duration_ms,
			countIf(degraded) AS degraded
		FROM search_events
		WHERE timestamp >= now() - INTERVAL ? SECOND
		GROUP BY intent
		ORDER BY searches DESC
	`

	rows, err := c.conn.Query(ctx, query, int64(window.Seconds()))
	if err != nil {
		observability.CHQueryDuration.WithLabelValues("intent_breakdown", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("ch intent breakdown query: %w", err)
	}
	defer rows.Close()

	var breakdown []IntentBreakdown
	for rows.Next() {
		var row IntentBreakdown
		if err := rows.Scan(&row.Intent, &row.Searches, &row.AvgDurationMs, &row.Degraded); err != nil {
			return nil, fmt.Errorf("scanning intent row: %w", err)
		}
		breakdown = append(breakdown, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intent rows: %w", err)
	}

	observability.CHQueryDuration.WithLabelValues("intent_breakdown", "success").Observe(time.Since(start).Seconds())
	return breakdown, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS search_events (
		event_type String,
		query_hash String,
		search_index String,
		intent String,
		duration_ms Float64,
		total_hits Int64,
		degraded Bool,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, query_hash)`

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating search_events table: %w", err)
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
