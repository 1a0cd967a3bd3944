package watch

import (
    "context"
    "encoding/json"
    "log"
    "os"
    "path/filepath"
    "strings"

    "github.com/fsnotify/fsnotify"

    "carecall/internal/config"
    "carecall/internal/ingest"
)

// Watcher monitors CALLS_DIR for dropped call-payload JSON files and feeds
// them through the same ingest path as the HTTP boundary.
type Watcher struct {
    cfg      config.Config
    ingester *ingest.Service
}

func New(cfg config.Config, ingester *ingest.Service) *Watcher {
    return &Watcher{cfg: cfg, ingester: ingester}
}

func (w *Watcher) Start(ctx context.Context) error {
    if !w.cfg.EnableWatcher {
        log.Println("watcher disabled")
        return nil
    }
    watcher, err := fsnotify.NewWatcher()
    if err != nil {
        return err
    }
    go func() {
        defer watcher.Close()
        for {
            select {
            case <-ctx.Done():
                return
            case evt := <-watcher.Events:
                if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
                    if isPayload(evt.Name) {
                        w.ingestFile(ctx, evt.Name)
                    }
                }
            case err := <-watcher.Errors:
                log.Printf("watcher error: %v", err)
            }
        }
    }()
    return watcher.Add(w.cfg.CallsDir)
}

// Backfill ingests payload files already present in the directory, so files
// dropped while the process was down are not lost.
func (w *Watcher) Backfill(ctx context.Context) error {
    if !w.cfg.EnableWatcher {
        return nil
    }
    entries, err := filepath.Glob(filepath.Join(w.cfg.CallsDir, "*.json"))
    if err != nil {
        return err
    }
    for _, e := range entries {
        w.ingestFile(ctx, e)
    }
    return nil
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
    raw, err := os.ReadFile(path)
    if err != nil {
        log.Printf("watch: read %s: %v", path, err)
        return
    }
    var payload ingest.Payload
    if err := json.Unmarshal(raw, &payload); err != nil {
        log.Printf("watch: skip %s: %v", path, err)
        return
    }
    rec, task, err := w.ingester.Ingest(ctx, payload)
    if err != nil {
        log.Printf("watch: ingest %s: %v", path, err)
        return
    }
    log.Printf("watch: ingested %s as call %d (task %s)", filepath.Base(path), rec.ID, task.ID)
}

func isPayload(path string) bool {
    return strings.EqualFold(filepath.Ext(path), ".json")
}
