package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/model"
	"github.com/nao1215/trustscan/internal/report"
	"github.com/xuri/excelize/v2"
)

func highRiskResult(host string) *model.AnalysisResult {
	return &model.AnalysisResult{
		NormalizedURL: "https://" + host + "/",
		Score:         22,
		Status:        model.StatusHighRisk,
		Explainability: []model.ExplainabilityItem{
			{Key: "https", Label: "HTTPS", Verdict: model.VerdictBad, Detail: "Site is served over plain HTTP"},
		},
		AnalyzedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

// seedSQLite records the given hosts as flagged in a SQLite database and
// returns a config file pointing at it.
func seedSQLite(t *testing.T, hosts ...string) string {
	t.Helper()

	dbDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Storage = config.StorageSQLite
	cfg.DBDir = dbDir

	ctx := context.Background()
	engine, closeFn, err := analyzer.Build(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, host := range hosts {
		if _, ok := engine.Flagged().Observe(ctx, highRiskResult(host), now.Add(time.Duration(i)*time.Minute)); !ok {
			t.Fatalf("%s was not flagged", host)
		}
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	return writeTestConfig(t, fmt.Sprintf("storage:\n  backend: sqlite\n  dbDir: %q\n", dbDir))
}

func TestNewFlaggedCmd(t *testing.T) {
	t.Parallel()

	cmd := NewFlaggedCmd()
	flag := cmd.Flags().Lookup("limit")
	if flag == nil {
		t.Fatal("expected limit flag")
	}
	if flag.DefValue != "20" {
		t.Errorf("limit default = %q, want 20", flag.DefValue)
	}
	for _, name := range []string{"offset", "json", "xlsx"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Error("expected error for two queries")
	}
}

func TestRunFlaggedCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists flagged sites from sqlite as json", func(t *testing.T) {
		t.Parallel()

		cfgPath := seedSQLite(t, "scam.example.com", "fake.example.net")

		var out, errOut bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs([]string{"flagged", "-c", cfgPath, "--json"})
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		var page model.FlaggedPage
		if err := json.Unmarshal(out.Bytes(), &page); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out.String())
		}
		if page.Total != 2 || len(page.Items) != 2 {
			t.Fatalf("page = %+v, want 2 sites", page)
		}
		if page.Items[0].Hostname != "fake.example.net" {
			t.Errorf("first = %q, want most recent first", page.Items[0].Hostname)
		}
		if strings.Contains(errOut.String(), "storage is memory") {
			t.Error("memory note printed for sqlite storage")
		}
	})

	t.Run("filters by query", func(t *testing.T) {
		t.Parallel()

		cfgPath := seedSQLite(t, "scam.example.com", "fake.example.net")

		var out bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"flagged", "-c", cfgPath, "SCAM"})
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(out.String(), "scam.example.com") {
			t.Errorf("matching site missing: %q", out.String())
		}
		if strings.Contains(out.String(), "fake.example.net") {
			t.Errorf("non-matching site listed: %q", out.String())
		}
	})

	t.Run("exports xlsx", func(t *testing.T) {
		t.Parallel()

		cfgPath := seedSQLite(t, "scam.example.com")
		xlsxPath := filepath.Join(t.TempDir(), "out", "flagged.xlsx")

		var out bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"flagged", "-c", cfgPath, "--xlsx", xlsxPath})
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(out.String(), "Exported 1 flagged sites") {
			t.Errorf("output = %q", out.String())
		}

		f, err := excelize.OpenFile(xlsxPath)
		if err != nil {
			t.Fatalf("OpenFile() error = %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows(report.FlaggedSheet)
		if err != nil {
			t.Fatalf("GetRows() error = %v", err)
		}
		if len(rows) != 2 || rows[1][0] != "scam.example.com" {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("memory storage prints a note", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeTestConfig(t, "storage:\n  backend: memory\n")

		var out, errOut bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs([]string{"flagged", "-c", cfgPath})
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(errOut.String(), "storage is memory") {
			t.Errorf("note missing: %q", errOut.String())
		}
		if !strings.Contains(out.String(), "No flagged sites") {
			t.Errorf("output = %q", out.String())
		}
	})
}

// pagedReader serves a fixed list of records in pages.
type pagedReader struct {
	records []model.FlaggedSiteRecord
	calls   int
}

func (p *pagedReader) Search(_ context.Context, q model.FlaggedQuery) (model.FlaggedPage, error) {
	p.calls++
	end := min(q.Offset+q.Limit, len(p.records))
	start := min(q.Offset, end)
	return model.FlaggedPage{Items: p.records[start:end], Total: len(p.records)}, nil
}

func (p *pagedReader) Get(context.Context, string) (model.FlaggedSiteRecord, error) {
	return model.FlaggedSiteRecord{}, model.ErrNotFound
}

func TestCollectFlagged(t *testing.T) {
	t.Parallel()

	records := make([]model.FlaggedSiteRecord, 250)
	for i := range records {
		records[i].Hostname = fmt.Sprintf("site%03d.example.com", i)
	}
	r := &pagedReader{records: records}

	got, err := collectFlagged(context.Background(), r, "")
	if err != nil {
		t.Fatalf("collectFlagged() error = %v", err)
	}
	if len(got) != 250 {
		t.Errorf("collected %d records, want 250", len(got))
	}
	if r.calls != 3 {
		t.Errorf("Search called %d times, want 3", r.calls)
	}
	if got[249].Hostname != "site249.example.com" {
		t.Errorf("last = %q", got[249].Hostname)
	}
}

func TestExportFlaggedXLSXPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flagged.xlsx")
	if err := exportFlaggedXLSX(path, nil); err != nil {
		t.Fatalf("exportFlaggedXLSX() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}
