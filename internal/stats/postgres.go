package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"go.uber.org/zap"
)

const schema = `
	CREATE TABLE IF NOT EXISTS detection_counts (
		rule_key    TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		count       BIGINT NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const upsertCount = `
	INSERT INTO detection_counts (rule_key, description, count, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (rule_key) DO UPDATE
	SET count = detection_counts.count + EXCLUDED.count,
		description = EXCLUDED.description,
		updated_at = EXCLUDED.updated_at`

// PostgresRecorder stores totals in the detection_counts table.
type PostgresRecorder struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewPostgresRecorder connects to PostgreSQL and creates the table if needed.
func NewPostgresRecorder(cfg config.StatsConfig, log *logger.Logger) (*PostgresRecorder, error) {
	if log == nil {
		log = logger.NewNop()
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	rec := &PostgresRecorder{db: db, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rec.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize stats store: %w", err)
	}

	log.Info("Stats store initialized",
		zap.String("backend", "postgres"),
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return rec, nil
}

// EnsureSchema creates the detection_counts table if it does not exist.
func (p *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create detection_counts table: %w", err)
	}
	return nil
}

// Record adds the summary's counts in one transaction.
func (p *PostgresRecorder) Record(ctx context.Context, summary privacy.Summary) error {
	if len(summary) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertCount)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	// lock rows in key order
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		st := summary[key]
		if _, err := stmt.ExecContext(ctx, key, st.Description, st.Count); err != nil {
			p.logger.Error("Failed to record detection count", zap.String("rule", key), zap.Error(err))
			return fmt.Errorf("failed to record %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detection counts: %w", err)
	}

	p.logger.Debug("Detection counts recorded", zap.Int("rules", len(keys)))
	return nil
}

// Totals returns the cumulative counts keyed by rule.
func (p *PostgresRecorder) Totals(ctx context.Context) (map[string]Total, error) {
	var rows []Total
	query := `SELECT rule_key, description, count, updated_at FROM detection_counts ORDER BY rule_key`
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load detection counts: %w", err)
	}

	out := make(map[string]Total, len(rows))
	for _, r := range rows {
		out[r.RuleKey] = r
	}
	return out, nil
}

// Reset deletes every stored count.
func (p *PostgresRecorder) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM detection_counts`); err != nil {
		return fmt.Errorf("failed to reset detection counts: %w", err)
	}
	p.logger.Info("Detection counts reset")
	return nil
}

// Close closes the database connection
func (p *PostgresRecorder) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// maskDatabaseURL hides the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userInfo := url[:at]
	colon := strings.LastIndex(userInfo, ":")
	scheme := strings.Index(userInfo, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userInfo[:colon+1] + "***" + url[at:]
}
