package outbox

import (
    "context"
    "log"
    "sync"
    "time"

    "carecall/internal/metrics"
    "carecall/internal/store"
)

// Handler processes one claimed task. A nil error marks the task DONE; any
// error marks it FAILED. Handlers own their retry policy.
type Handler func(ctx context.Context, task store.Task) error

// Dispatcher polls the task outbox and fans claimed tasks out to a bounded
// worker pool. Tasks become visible only after the ingesting transaction
// commits, so a poll never observes a call that was rolled back.
type Dispatcher struct {
    store    *store.Store
    handler  Handler
    interval time.Duration
    timeout  time.Duration
    workers  int
    tasks    chan store.Task
    wg       sync.WaitGroup
    cancel   context.CancelFunc
}

func NewDispatcher(st *store.Store, handler Handler, interval, timeout time.Duration, workers, queueSize int) *Dispatcher {
    return &Dispatcher{
        store:    st,
        handler:  handler,
        interval: interval,
        timeout:  timeout,
        workers:  workers,
        tasks:    make(chan store.Task, queueSize),
    }
}

// Start launches the poll loop and worker pool. Tasks left PROCESSING by a
// previous run are requeued first, so a crash between claim and finish only
// delays a task instead of stranding it.
func (d *Dispatcher) Start(ctx context.Context) {
    ctx, cancel := context.WithCancel(ctx)
    d.cancel = cancel
    if n, err := d.store.RequeueStuckTasks(ctx); err != nil {
        log.Printf("outbox: requeue stuck tasks: %v", err)
    } else if n > 0 {
        log.Printf("outbox: requeued %d stuck tasks", n)
    }
    for i := 0; i < d.workers; i++ {
        d.wg.Add(1)
        go d.worker(ctx)
    }
    d.wg.Add(1)
    go d.poll(ctx)
}

// Stop cancels the loop and waits for in-flight tasks.
func (d *Dispatcher) Stop() {
    if d.cancel != nil {
        d.cancel()
    }
    d.wg.Wait()
}

func (d *Dispatcher) poll(ctx context.Context) {
    defer d.wg.Done()
    ticker := time.NewTicker(d.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            d.pump(ctx)
        }
    }
}

// pump claims as many READY tasks as fit in the channel right now.
func (d *Dispatcher) pump(ctx context.Context) {
    free := cap(d.tasks) - len(d.tasks)
    if free <= 0 {
        return
    }
    claimed, err := d.store.ClaimTasks(ctx, free)
    if err != nil {
        log.Printf("outbox: claim failed: %v", err)
        return
    }
    for _, t := range claimed {
        select {
        case d.tasks <- t:
        case <-ctx.Done():
            return
        }
    }
}

func (d *Dispatcher) worker(ctx context.Context) {
    defer d.wg.Done()
    for {
        select {
        case <-ctx.Done():
            return
        case task := <-d.tasks:
            d.run(ctx, task)
        }
    }
}

func (d *Dispatcher) run(ctx context.Context, task store.Task) {
    taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
    defer cancel()
    err := d.handler(taskCtx, task)
    if err != nil {
        metrics.IncTasksFailed()
        msg := err.Error()
        log.Printf("outbox: task %s (call %d) failed: %v", task.ID, task.CallID, err)
        if ferr := d.store.FinishTask(ctx, task.ID, store.TaskFailed, task.Attempts+1, &msg); ferr != nil {
            log.Printf("outbox: finish task %s: %v", task.ID, ferr)
        }
        return
    }
    metrics.IncTasksProcessed()
    if ferr := d.store.FinishTask(ctx, task.ID, store.TaskDone, task.Attempts+1, nil); ferr != nil {
        log.Printf("outbox: finish task %s: %v", task.ID, ferr)
    }
}
