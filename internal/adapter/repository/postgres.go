package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// Schema creates the results table when it does not exist yet.
const Schema = `
	CREATE TABLE IF NOT EXISTS ioc_results (
		run_id   UUID        NOT NULL,
		position INTEGER     NOT NULL,
		type     TEXT,
		value    TEXT        NOT NULL,
		score    INTEGER,
		country  TEXT,
		source   TEXT        NOT NULL,
		tags     TEXT[]      NOT NULL DEFAULT '{}',
		date     TEXT,
		saved_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, position)
	)
`

const insertResult = `
	INSERT INTO ioc_results (run_id, position, type, value, score, country, source, tags, date, saved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id, position) DO NOTHING
`

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create ioc_results table: %w", err)
	}
	return nil
}

// SaveBatch stores the final result set of one run, keeping its order.
func (r *PostgresRepository) SaveBatch(ctx context.Context, runID uuid.UUID, iocs []domain.IOC) error {
	if len(iocs) == 0 {
		return nil
	}

	batch := buildBatch(runID, iocs, time.Now().UTC())

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range iocs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	return nil
}

func buildBatch(runID uuid.UUID, iocs []domain.IOC, savedAt time.Time) *pgx.Batch {
	batch := &pgx.Batch{}
	for i, ioc := range iocs {
		batch.Queue(insertResult, rowArgs(runID, i, ioc, savedAt)...)
	}
	return batch
}

// rowArgs maps absent fields to SQL NULL.
func rowArgs(runID uuid.UUID, position int, ioc domain.IOC, savedAt time.Time) []any {
	var iocType *string
	if ioc.HasType() {
		iocType = domain.StringPtr(string(ioc.Type))
	}
	tags := ioc.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		runID,
		position,
		iocType,
		ioc.Value,
		ioc.Score,
		ioc.Country,
		ioc.Source,
		tags,
		ioc.Date,
		savedAt,
	}
}
