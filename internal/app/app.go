package app

import (
    "context"
    "log"
    "net/http"

    "carecall/internal/analysis"
    "carecall/internal/config"
    "carecall/internal/events"
    "carecall/internal/extract"
    "carecall/internal/httpapi"
    "carecall/internal/ingest"
    "carecall/internal/llm"
    "carecall/internal/outbox"
    "carecall/internal/stats"
    "carecall/internal/store"
    "carecall/internal/summarize"
    "carecall/internal/watch"
)

// App wires the ingest, analysis and statistics components together.
type App struct {
    cfg        config.Config
    store      *store.Store
    bus        *events.Bus
    dispatcher *outbox.Dispatcher
    watcher    *watch.Watcher
    mux        *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
    st, err := store.Open(cfg.DBPath)
    if err != nil {
        return nil, err
    }
    bus := events.NewBus()

    var client *llm.Client
    if cfg.Extraction.Enabled {
        client = llm.New(nil, cfg.Extraction.Model, cfg.Extraction.BaseURL, cfg.Extraction.APIKey())
    }
    summaries := summarize.NewService(client)
    daily := stats.NewDailyAggregator(st, summaries)
    weekly := stats.NewWeeklyAggregator(st, summaries)
    coordinator := stats.NewCoordinator(daily, weekly)

    orchestrator := analysis.NewOrchestrator(
        st,
        extract.NewLLMExtractor(client),
        summaries,
        coordinator,
        bus,
        cfg.Extraction.MaxAttempts,
        cfg.Extraction.RetryDelay,
    )
    dispatcher := outbox.NewDispatcher(st, orchestrator.HandleTask, cfg.PollInterval, cfg.TaskTimeout, cfg.WorkerCount, cfg.QueueSize)

    ingester := ingest.NewService(st, bus)
    watcher := watch.New(cfg, ingester)

    mux := http.NewServeMux()
    router := httpapi.NewRouter(cfg, st, ingester)
    router.Register(mux)

    return &App{cfg: cfg, store: st, bus: bus, dispatcher: dispatcher, watcher: watcher, mux: mux}, nil
}

// Run starts the dispatcher, watcher, and HTTP server.
func (a *App) Run(ctx context.Context) error {
    a.dispatcher.Start(ctx)
    defer a.dispatcher.Stop()
    if err := a.watcher.Start(ctx); err != nil {
        return err
    }
    if err := a.watcher.Backfill(ctx); err != nil {
        log.Printf("watch: backfill: %v", err)
    }
    srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
    go func() {
        <-ctx.Done()
        _ = srv.Shutdown(context.Background())
    }()
    log.Printf("http listening on %s", a.cfg.HTTPPort)
    return srv.ListenAndServe()
}

func (a *App) Store() *store.Store { return a.store }
func (a *App) Bus() *events.Bus    { return a.bus }
func (a *App) Mux() *http.ServeMux { return a.mux }
