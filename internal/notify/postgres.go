package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
)

const createAlertTable = `CREATE TABLE IF NOT EXISTS alert_events (
	id            TEXT PRIMARY KEY,
	seq           BIGINT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	message       TEXT NOT NULL,
	snapshot_path TEXT,
	detections    JSONB NOT NULL DEFAULT '[]'
)`

const insertAlert = `INSERT INTO alert_events (id, seq, occurred_at, message, snapshot_path, detections)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

// OpenPostgres opens and pings a PostgreSQL database.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresLog records alerts in the alert_events table.
type PostgresLog struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresLog creates the channel. Call EnsureSchema before the first alert.
func NewPostgresLog(db *sql.DB, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{db: db, logger: logger}
}

// EnsureSchema creates the alert_events table if needed.
func (p *PostgresLog) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createAlertTable); err != nil {
		return fmt.Errorf("create alert_events: %w", err)
	}
	return nil
}

// Name implements Channel.
func (p *PostgresLog) Name() string { return "postgres" }

// Notify inserts one row.
func (p *PostgresLog) Notify(ctx context.Context, alert logic.AlertEvent) error {
	dets, err := json.Marshal(NewPayload(alert).Detections)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}

	var snapshot sql.NullString
	if alert.SnapshotPath != "" {
		snapshot = sql.NullString{String: alert.SnapshotPath, Valid: true}
	}

	res, err := p.db.ExecContext(ctx, insertAlert,
		alert.ID, int64(alert.Seq), alert.Timestamp, alert.Message, snapshot, string(dets))
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		p.logger.Debug("alert already recorded", zap.String("alert_id", alert.ID))
	}
	return nil
}

// Close closes the database.
func (p *PostgresLog) Close() error {
	return p.db.Close()
}
