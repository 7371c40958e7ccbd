package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/trustscan/internal/flagged"
	"github.com/nao1215/trustscan/internal/model"
)

// SQLiteFileName is the database file created inside the data directory.
const SQLiteFileName = "trustscan.db"

// SQLiteStore is the SQLite backend of the cache and flagged stores.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Options configures OpenSQLite.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI and server.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenSQLite opens or creates the database in dbDir and applies migrations.
func OpenSQLite(ctx context.Context, dbDir string, opts Options) (*SQLiteStore, error) {
	dbPath := filepath.Join(dbDir, SQLiteFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// GetCache implements cache.Store.
func (s *SQLiteStore) GetCache(ctx context.Context, key string) (*model.CacheRecord, error) {
	var (
		rec        model.CacheRecord
		resultJSON []byte
		createdMs  int64
		expiresMs  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, hostname, version, result_json, created_at_ms, expires_at_ms
		FROM analysis_cache WHERE cache_key = ?`, key,
	).Scan(&rec.Key, &rec.Hostname, &rec.Version, &resultJSON, &createdMs, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return decodeCacheRecord(rec, resultJSON, createdMs, expiresMs)
}

// PutCache implements cache.Store.
func (s *SQLiteStore) PutCache(ctx context.Context, rec *model.CacheRecord) error {
	resultJSON, err := marshalJSON(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (cache_key, hostname, version, result_json, created_at_ms, expires_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			hostname = excluded.hostname,
			version = excluded.version,
			result_json = excluded.result_json,
			created_at_ms = excluded.created_at_ms,
			expires_at_ms = excluded.expires_at_ms`,
		rec.Key, rec.Hostname, rec.Version, string(resultJSON), rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// PurgeExpiredCache deletes cache records expired at now and returns how
// many were removed.
func (s *SQLiteStore) PurgeExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE expires_at_ms <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// UpsertFlagged implements flagged.Store.
func (s *SQLiteStore) UpsertFlagged(ctx context.Context, rec model.FlaggedSiteRecord) (model.FlaggedSiteRecord, error) {
	row, err := newFlaggedRow(rec)
	if err != nil {
		return model.FlaggedSiteRecord{}, err
	}

	query := `
	INSERT INTO flagged_sites (` + flaggedColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(hostname) DO UPDATE SET
		normalized_url = excluded.normalized_url,
		last_observed_at_ms = MAX(flagged_sites.last_observed_at_ms, excluded.last_observed_at_ms),
		last_analysis_at_ms = excluded.last_analysis_at_ms,
		score = excluded.score,
		status = excluded.status,
		ai_verdict = excluded.ai_verdict,
		ai_confidence = excluded.ai_confidence,
		summary = excluded.summary,
		issues_json = excluded.issues_json,
		findings_json = excluded.findings_json,
		evidence_json = excluded.evidence_json,
		times_observed = flagged_sites.times_observed + 1
	RETURNING ` + flaggedColumns

	var out flaggedRow
	if err := s.db.QueryRowContext(ctx, query, row.args()...).Scan(out.dest()...); err != nil {
		return model.FlaggedSiteRecord{}, fmt.Errorf("failed to upsert flagged site: %w", err)
	}
	return out.record()
}

// GetFlagged implements flagged.Store.
func (s *SQLiteStore) GetFlagged(ctx context.Context, hostname string) (model.FlaggedSiteRecord, error) {
	var row flaggedRow
	err := s.db.QueryRowContext(ctx,
		`SELECT `+flaggedColumns+` FROM flagged_sites WHERE hostname = lower(?)`, hostname,
	).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FlaggedSiteRecord{}, fmt.Errorf("flagged site %s: %w", hostname, model.ErrNotFound)
	}
	if err != nil {
		return model.FlaggedSiteRecord{}, fmt.Errorf("failed to query flagged site: %w", err)
	}
	return row.record()
}

// SearchFlagged implements flagged.Store.
func (s *SQLiteStore) SearchFlagged(ctx context.Context, q model.FlaggedQuery) (model.FlaggedPage, error) {
	q = flagged.NormalizeQuery(q)
	where := ""
	var args []any
	if q.Text != "" {
		pattern := likePattern(q.Text)
		where = ` WHERE lower(hostname) LIKE ? ESCAPE '\'
			OR lower(normalized_url) LIKE ? ESCAPE '\'
			OR lower(summary) LIKE ? ESCAPE '\'
			OR lower(issues_json) LIKE ? ESCAPE '\'`
		args = []any{pattern, pattern, pattern, pattern}
	}

	page := model.FlaggedPage{Items: []model.FlaggedSiteRecord{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flagged_sites`+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count flagged sites: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+flaggedColumns+` FROM flagged_sites`+where+
			` ORDER BY last_observed_at_ms DESC, hostname ASC LIMIT ? OFFSET ?`,
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

func decodeCacheRecord(rec model.CacheRecord, resultJSON []byte, createdMs, expiresMs int64) (*model.CacheRecord, error) {
	var result model.AnalysisResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached result: %w", err)
	}
	rec.Result = &result
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	return &rec, nil
}
