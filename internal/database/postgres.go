package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nao1215/trustscan/internal/flagged"
	"github.com/nao1215/trustscan/internal/model"
)

// PostgresStore is the PostgreSQL backend of the cache and flagged stores.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url, verifies the connection and applies
// migrations.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "migrations/postgres")
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// GetCache implements cache.Store.
func (p *PostgresStore) GetCache(ctx context.Context, key string) (*model.CacheRecord, error) {
	var (
		rec        model.CacheRecord
		resultJSON []byte
		createdMs  int64
		expiresMs  int64
	)
	err := p.pool.QueryRow(ctx, `
		SELECT cache_key, hostname, version, result_json, created_at_ms, expires_at_ms
		FROM analysis_cache WHERE cache_key = $1`, key,
	).Scan(&rec.Key, &rec.Hostname, &rec.Version, &resultJSON, &createdMs, &expiresMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cache %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return decodeCacheRecord(rec, resultJSON, createdMs, expiresMs)
}

// PutCache implements cache.Store.
func (p *PostgresStore) PutCache(ctx context.Context, rec *model.CacheRecord) error {
	resultJSON, err := marshalJSON(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO analysis_cache (cache_key, hostname, version, result_json, created_at_ms, expires_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			version = EXCLUDED.version,
			result_json = EXCLUDED.result_json,
			created_at_ms = EXCLUDED.created_at_ms,
			expires_at_ms = EXCLUDED.expires_at_ms`,
		rec.Key, rec.Hostname, rec.Version, string(resultJSON), rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// UpsertFlagged implements flagged.Store.
func (p *PostgresStore) UpsertFlagged(ctx context.Context, rec model.FlaggedSiteRecord) (model.FlaggedSiteRecord, error) {
	row, err := newFlaggedRow(rec)
	if err != nil {
		return model.FlaggedSiteRecord{}, err
	}

	query := `
	INSERT INTO flagged_sites (` + flaggedColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (hostname) DO UPDATE SET
		normalized_url = EXCLUDED.normalized_url,
		last_observed_at_ms = GREATEST(flagged_sites.last_observed_at_ms, EXCLUDED.last_observed_at_ms),
		last_analysis_at_ms = EXCLUDED.last_analysis_at_ms,
		score = EXCLUDED.score,
		status = EXCLUDED.status,
		ai_verdict = EXCLUDED.ai_verdict,
		ai_confidence = EXCLUDED.ai_confidence,
		summary = EXCLUDED.summary,
		issues_json = EXCLUDED.issues_json,
		findings_json = EXCLUDED.findings_json,
		evidence_json = EXCLUDED.evidence_json,
		times_observed = flagged_sites.times_observed + 1
	RETURNING ` + flaggedColumns

	var out flaggedRow
	if err := p.pool.QueryRow(ctx, query, row.args()...).Scan(out.dest()...); err != nil {
		return model.FlaggedSiteRecord{}, fmt.Errorf("failed to upsert flagged site: %w", err)
	}
	return out.record()
}

// GetFlagged implements flagged.Store.
func (p *PostgresStore) GetFlagged(ctx context.Context, hostname string) (model.FlaggedSiteRecord, error) {
	var row flaggedRow
	err := p.pool.QueryRow(ctx,
		`SELECT `+flaggedColumns+` FROM flagged_sites WHERE hostname = lower($1)`, hostname,
	).Scan(row.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FlaggedSiteRecord{}, fmt.Errorf("flagged site %s: %w", hostname, model.ErrNotFound)
	}
	if err != nil {
		return model.FlaggedSiteRecord{}, fmt.Errorf("failed to query flagged site: %w", err)
	}
	return row.record()
}

// SearchFlagged implements flagged.Store.
func (p *PostgresStore) SearchFlagged(ctx context.Context, q model.FlaggedQuery) (model.FlaggedPage, error) {
	q = flagged.NormalizeQuery(q)
	where := ""
	var args []any
	if q.Text != "" {
		args = append(args, likePattern(q.Text))
		where = ` WHERE hostname ILIKE $1 ESCAPE '\'
			OR normalized_url ILIKE $1 ESCAPE '\'
			OR summary ILIKE $1 ESCAPE '\'
			OR issues_json::text ILIKE $1 ESCAPE '\'`
	}

	page := model.FlaggedPage{Items: []model.FlaggedSiteRecord{}}
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flagged_sites`+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count flagged sites: %w", err)
	}

	n := len(args)
	rows, err := p.pool.Query(ctx,
		`SELECT `+flaggedColumns+` FROM flagged_sites`+where+
			` ORDER BY last_observed_at_ms DESC, hostname ASC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		append(args, q.Limit, q.Offset)...,
	)
	if err != nil {
		return page, fmt.Errorf("failed to search flagged sites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row flaggedRow
		if err := rows.Scan(row.dest()...); err != nil {
			return page, fmt.Errorf("failed to scan flagged site: %w", err)
		}
		rec, err := row.record()
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, rec)
	}
	return page, rows.Err()
}
