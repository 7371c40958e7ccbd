package database

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/nao1215/trustscan/internal/model"
)

// TestPostgresStore runs against a live server when TRUSTSCAN_TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TRUSTSCAN_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TRUSTSCAN_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer db.Close()

	host := uuid.NewString() + ".example.com"

	if _, err := db.GetFlagged(ctx, host); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetFlagged() error = %v, want ErrNotFound", err)
	}

	if _, err := db.UpsertFlagged(ctx, flaggedRecord(host, 1000)); err != nil {
		t.Fatalf("UpsertFlagged() error = %v", err)
	}
	got, err := db.UpsertFlagged(ctx, flaggedRecord(host, 2000))
	if err != nil {
		t.Fatalf("UpsertFlagged() error = %v", err)
	}
	if got.TimesObserved != 2 || got.FirstObservedAtMs != 1000 || got.LastObservedAtMs != 2000 {
		t.Errorf("got times=%d first=%d last=%d", got.TimesObserved, got.FirstObservedAtMs, got.LastObservedAtMs)
	}

	page, err := db.SearchFlagged(ctx, model.FlaggedQuery{Text: host})
	if err != nil {
		t.Fatalf("SearchFlagged() error = %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Hostname != host {
		t.Errorf("page = %+v", page)
	}
}
