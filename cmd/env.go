package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-cli/internal/analyzer"
	"github.com/sells-group/funnel-cli/internal/queue"
	"github.com/sells-group/funnel-cli/internal/ratelimit"
	"github.com/sells-group/funnel-cli/internal/resilience"
	"github.com/sells-group/funnel-cli/internal/sheet"
	"github.com/sells-group/funnel-cli/internal/store"
	"github.com/sells-group/funnel-cli/pkg/anthropic"
	"github.com/sells-group/funnel-cli/pkg/maxhelper"
)

// openStore builds the object store named by store.driver.
func openStore(ctx context.Context) (store.ObjectStore, error) {
	switch cfg.Store.Driver {
	case "fs", "":
		return store.NewFS(cfg.Store.Root)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newQueue(s store.ObjectStore) *queue.Queue {
	return queue.New(s, cfg.Worker.MaxAttempts, cfg.Worker.ClaimLimit)
}

func newMaxHelper() (maxhelper.Client, error) {
	if cfg.MaxHelper.BaseURL == "" {
		return nil, eris.New("maxhelper.base_url is required (FUNNEL_MAXHELPER_BASE_URL)")
	}

	bucket := ratelimit.New(cfg.RateLimit.RatePerMin/60, cfg.RateLimit.Capacity)

	breaker := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
		cfg.MaxHelper.CircuitFailureThreshold,
		cfg.MaxHelper.CircuitResetTimeoutSecs,
	))

	return maxhelper.NewClient(cfg.MaxHelper.BaseURL, cfg.MaxHelper.APIKey, bucket,
		maxhelper.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.MaxHelper.TimeoutSecs) * time.Second,
		}),
		maxhelper.WithRetryDelay(time.Duration(cfg.MaxHelper.RetryDelayMs)*time.Millisecond),
		maxhelper.WithCircuitBreaker(breaker),
	), nil
}

// newAnalyzer picks the Claude analyzer when a key is configured and
// falls back to deterministic rules otherwise.
func newAnalyzer() analyzer.Analyzer {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic.key not set, using rules analyzer")
		return analyzer.Rules{}
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return analyzer.NewClaude(client, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens))
}

func newSink(ctx context.Context) (sheet.Sink, error) {
	sink, err := sheet.NewXLSXSink(cfg.Sheet.Path, cfg.Sheet.SheetName)
	if err != nil {
		return nil, err
	}
	if err := sink.EnsureHeader(ctx, sheet.Columns); err != nil {
		return nil, err
	}
	return sink, nil
}
