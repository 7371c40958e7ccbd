package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/model"
)

func cachedResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		NormalizedURL:  "https://shop.example.com/",
		Score:          80,
		Status:         model.StatusLowRisk,
		Explainability: []model.ExplainabilityItem{},
		AnalyzedAt:     time.Now().UTC().Truncate(time.Millisecond),
		AgentSignals:   &model.AgentSignals{Source: model.SourceLocal},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("memory storage", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Storage = config.StorageMemory

		e, closeFn, err := Build(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		defer closeFn()

		if e.delegate == nil || e.delegate.Configured() {
			t.Error("agent delegate should exist but be unconfigured")
		}
		if e.judge == nil || e.crawler == nil || e.fetcher == nil || e.tls == nil || e.domainAge == nil {
			t.Error("stage missing from built engine")
		}
		if e.timeout != cfg.Timeout || e.deepTimeout != cfg.DeepTimeout {
			t.Errorf("timeouts = %v/%v", e.timeout, e.deepTimeout)
		}
	})

	t.Run("sqlite storage persists across builds", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Storage = config.StorageSQLite
		cfg.DBDir = t.TempDir()
		ctx := context.Background()

		e, closeFn, err := Build(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		e.Cache().Put(ctx, "shop.example.com", cachedResult())
		if err := closeFn(); err != nil {
			t.Fatalf("close error = %v", err)
		}

		reopened, closeFn, err := Build(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		defer closeFn()

		got, ok := reopened.Cache().Get(ctx, "shop.example.com")
		if !ok {
			t.Fatal("cached result not persisted")
		}
		if got.Score != 80 || !got.Cached {
			t.Errorf("cached result = %+v", got)
		}
	})

	t.Run("unreachable postgres falls back to memory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Storage = config.StoragePostgres
		cfg.DatabaseURL = "postgres://trustscan@127.0.0.1:1/trustscan?connect_timeout=1"

		e, closeFn, err := Build(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		defer closeFn()

		e.Cache().Put(context.Background(), "shop.example.com", cachedResult())
		if _, ok := e.Cache().Get(context.Background(), "shop.example.com"); !ok {
			t.Error("memory cache not serving after fallback")
		}
	})
}
