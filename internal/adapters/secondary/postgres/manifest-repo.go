package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mlflow-migrate/internal/config"
	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

var ErrManifestNotFound = errors.New("manifest record not found")

const schema = `
	CREATE TABLE IF NOT EXISTS migration_manifest (
		id           UUID PRIMARY KEY,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		operation    TEXT NOT NULL,
		entity       TEXT NOT NULL,
		duration     DOUBLE PRECISION NOT NULL,
		ok_count     INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		body         JSONB NOT NULL
	)
`

// Connect opens the database pool and makes sure the manifest table exists.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create manifest table: %w", err)
	}
	return pool, nil
}

type manifestRepo struct {
	pool *pgxpool.Pool
}

func NewManifestRepository(pool *pgxpool.Pool) ports.ManifestRepository {
	return &manifestRepo{pool: pool}
}

func (r *manifestRepo) Create(ctx context.Context, m *domain.Manifest) (*ports.ManifestRecord, error) {
	body, err := m.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	id, err := uuid.Parse(m.OperationID)
	if err != nil {
		id = uuid.New()
	}
	rec := &ports.ManifestRecord{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Operation:   m.Operation,
		Entity:      m.Entity,
		Duration:    m.DurationSeconds(),
		OKCount:     len(m.OK),
		FailedCount: len(m.Failed),
		Body:        body,
	}

	query := `
		INSERT INTO migration_manifest
			(id, created_at, operation, entity, duration, ok_count, failed_count, body)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.CreatedAt, rec.Operation, rec.Entity,
		rec.Duration, rec.OKCount, rec.FailedCount, rec.Body,
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest record: %w", err)
	}
	return rec, nil
}

func (r *manifestRepo) GetByID(ctx context.Context, id uuid.UUID) (*ports.ManifestRecord, error) {
	query := `
		SELECT id, created_at, operation, entity, duration, ok_count, failed_count, body
		FROM migration_manifest
		WHERE id = $1
	`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("get manifest record: %w", err)
	}
	return rec, nil
}

func (r *manifestRepo) List(ctx context.Context, filter ports.ManifestListFilter) ([]*ports.ManifestRecord, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Operation != "" {
		conditions = append(conditions, fmt.Sprintf("operation = $%d", argPos))
		args = append(args, filter.Operation)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM migration_manifest WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count manifest records: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT id, created_at, operation, entity, duration, ok_count, failed_count, body
		FROM migration_manifest
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list manifest records: %w", err)
	}
	defer rows.Close()

	var records []*ports.ManifestRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan manifest record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list manifest records: %w", err)
	}
	return records, total, nil
}

func scanRecord(row pgx.Row) (*ports.ManifestRecord, error) {
	var rec ports.ManifestRecord
	err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Operation, &rec.Entity,
		&rec.Duration, &rec.OKCount, &rec.FailedCount, &rec.Body)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
