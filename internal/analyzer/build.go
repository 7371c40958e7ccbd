package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/trustscan/internal/agent"
	"github.com/nao1215/trustscan/internal/ai"
	"github.com/nao1215/trustscan/internal/cache"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/crawler"
	"github.com/nao1215/trustscan/internal/database"
	"github.com/nao1215/trustscan/internal/domainage"
	"github.com/nao1215/trustscan/internal/fetcher"
	"github.com/nao1215/trustscan/internal/flagged"
)

// durableStore is a storage backend serving both the cache and the flagged
// aggregator.
type durableStore interface {
	cache.Store
	flagged.Store
	Close() error
}

// Build creates an Engine from cfg. It wires the domain age resolver, the
// homepage fetcher, the TLS check, the crawler, the AI judge (a no-op
// without a credential), the remote delegate and the cache and flagged
// tiers over the configured storage backend. The returned close function
// releases the durable store, if any.
//
// A durable store that cannot be opened is logged and replaced by the
// in-memory tiers; the engine still works, without persistence.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, func() error, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dialer, err := fetcher.NewDialer(cfg.ProxyAddress, cfg.FetchTimeout)
	if err != nil {
		return nil, nil, err
	}
	httpClient := fetcher.NewHTTPClient(dialer)

	homepage := fetcher.New(
		fetcher.WithHTTPClient(httpClient),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxRedirects(cfg.MaxRedirects),
		fetcher.WithMaxBodySize(cfg.MaxHTMLBytes),
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithLogger(logger),
	)

	resolverOpts := []domainage.Option{
		domainage.WithHTTPClient(&http.Client{}),
		domainage.WithRDAPBaseURL(cfg.RDAPBaseURL),
		domainage.WithTimeout(cfg.DomainAgeTimeout),
		domainage.WithLogger(logger),
	}
	if cfg.WhoisFallback {
		resolverOpts = append(resolverOpts, domainage.WithWhois(domainage.NewWhoisLookup(cfg.DomainAgeTimeout)))
	}

	gemini := ai.NewGeminiClient(cfg.GeminiAPIKey,
		ai.WithBaseURL(cfg.GeminiBaseURL),
		ai.WithModel(cfg.GeminiModel),
		ai.WithTemperature(cfg.AITemperature),
		ai.WithMaxOutputTokens(cfg.AIMaxOutputTokens),
	)

	store := openStore(ctx, cfg, logger)

	cacheOpts := []cache.Option{
		cache.WithTTL(cfg.CacheTTL),
		cache.WithVersion(cfg.CacheVersion),
		cache.WithLogger(logger),
	}
	var flaggedStore flagged.Store
	closeFn := func() error { return nil }
	if store != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(store))
		flaggedStore = store
		closeFn = store.Close
	}

	engine := New(
		WithDomainAge(domainage.NewResolver(resolverOpts...)),
		WithFetcher(homepage),
		WithTLSProber(fetcher.NewTLSProber(
			fetcher.WithTLSDialer(dialer),
			fetcher.WithTLSTimeout(cfg.FetchTimeout),
		)),
		WithCrawler(crawler.NewSpider(homepage,
			crawler.WithMaxPages(cfg.CrawlMaxPages),
			crawler.WithLogger(logger),
		)),
		WithJudge(ai.NewJudge(gemini,
			ai.WithPromptMaxChars(cfg.AIPromptMaxChars),
			ai.WithLogger(logger),
		)),
		WithDelegate(agent.NewClient(cfg.AgentBaseURL, agent.WithLogger(logger))),
		WithCache(cache.New(cacheOpts...)),
		WithFlagged(flagged.NewAggregator(flaggedStore, flagged.WithLogger(logger))),
		WithTimeouts(cfg.Timeout, cfg.DeepTimeout),
		WithStageTimeouts(cfg.DomainAgeTimeout, cfg.FetchTimeout),
		WithAIMinBudget(cfg.AIMinBudget),
		WithLogger(logger),
	)
	return engine, closeFn, nil
}

// openStore opens the configured durable backend. It returns nil for
// memory storage or when the backend is unavailable.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) durableStore {
	var (
		store durableStore
		err   error
	)
	switch cfg.Storage {
	case config.StorageSQLite:
		store, err = database.OpenSQLite(ctx, cfg.DBDir, database.DefaultOptions())
	case config.StoragePostgres:
		store, err = database.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("durable storage unavailable, using memory only",
			"storage", cfg.Storage,
			"error", fmt.Errorf("open %s: %w", cfg.Storage, err),
		)
		return nil
	}
	logger.Debug("durable storage opened", "storage", cfg.Storage)
	return store
}
