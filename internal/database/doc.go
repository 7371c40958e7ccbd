// Package database provides the durable stores behind the analysis cache
// and the flagged-sites aggregator.
//
// Two backends implement cache.Store and flagged.Store:
//
//   - SQLiteStore, a single file opened with modernc.org/sqlite (CGO-free),
//     WAL mode and one writer connection.
//   - PostgresStore, a pgxpool connection pool.
//
// Both apply their schema with goose from migration files embedded in the
// binary, so a fresh database is usable right after Open.
//
// The flagged-site upsert is a single INSERT ... ON CONFLICT statement:
// the observation count is incremented and the first-seen time kept by the
// database, so concurrent observers never lose an increment.
package database
