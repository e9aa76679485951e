package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config holds the mirror database settings
type Config struct {
	DSN       string
	Schema    string
	MaxConns  int32
	BatchSize int
}

// Mirror copies catalogue records into a Postgres table for reporting.
// Rows are insert-only: a product already present is left as is.
type Mirror struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
	logger    *zap.Logger
}

// NewMirror connects to Postgres, checks the connection and creates the table if needed
func NewMirror(ctx context.Context, cfg Config, logger *zap.Logger) (*Mirror, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 4
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mirror{
		pool:      pool,
		table:     tableName(cfg.Schema),
		batchSize: cfg.BatchSize,
		logger:    logger.Named("postgres"),
	}
	if m.batchSize <= 0 {
		m.batchSize = 200
	}

	if err := m.migrate(ctx, cfg.Schema); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func tableName(schema string) string {
	if schema == "" {
		schema = "public"
	}
	return pgx.Identifier{schema, "inies_products"}.Sanitize()
}

func (m *Mirror) migrate(ctx context.Context, schema string) error {
	if schema != "" {
		if _, err := m.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+m.table+` (
		id                      TEXT PRIMARY KEY,
		name                    TEXT NOT NULL,
		declaration_type        TEXT NOT NULL,
		functional_unit         TEXT NOT NULL,
		service_life_years      DOUBLE PRECISION,
		co2_impact              DOUBLE PRECISION NOT NULL,
		system_boundary_benefit DOUBLE PRECISION NOT NULL,
		extraction_failed       BOOLEAN NOT NULL DEFAULT FALSE,
		mirrored_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

// Publish inserts records in batches and returns how many rows were new
func (m *Mirror) Publish(ctx context.Context, records []domain.ProductRecord) (int, error) {
	total := 0
	for _, b := range buildBatches(m.table, records, m.batchSize) {
		br := m.pool.SendBatch(ctx, b)
		for k := 0; k < b.Len(); k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, err
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, err
		}
	}
	m.logger.Info("records mirrored", zap.Int("offered", len(records)), zap.Int("inserted", total))
	return total, nil
}

// Close closes the connection pool
func (m *Mirror) Close() {
	m.pool.Close()
}

func buildBatches(table string, records []domain.ProductRecord, size int) []*pgx.Batch {
	var batches []*pgx.Batch
	b := &pgx.Batch{}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		b.Queue(
			`INSERT INTO `+table+`
			(id, name, declaration_type, functional_unit, service_life_years,
			 co2_impact, system_boundary_benefit, extraction_failed)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.Name, r.DeclarationType.String(), r.FunctionalUnit, r.ServiceLifeYears,
			r.CO2Impact, r.SystemBoundaryBenefit, r.IsExtractionFailure(),
		)
		if b.Len() == size {
			batches = append(batches, b)
			b = &pgx.Batch{}
		}
	}
	if b.Len() > 0 {
		batches = append(batches, b)
	}
	return batches
}
