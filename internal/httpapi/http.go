package httpapi

import (
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strconv"
    "strings"
    "time"

    "carecall/internal/config"
    "carecall/internal/ingest"
    "carecall/internal/metrics"
    "carecall/internal/model"
    "carecall/internal/stats"
    "carecall/internal/store"
)

// Router builds HTTP handlers for /internal, /api and /ops.
type Router struct {
    cfg      config.Config
    store    *store.Store
    ingester *ingest.Service
}

func NewRouter(cfg config.Config, st *store.Store, ingester *ingest.Service) *Router {
    return &Router{cfg: cfg, store: st, ingester: ingester}
}

func (r *Router) Register(mux *http.ServeMux) {
    mux.HandleFunc("/internal/calls", r.ingestCall)
    mux.HandleFunc("/api/elders", r.elders)
    mux.HandleFunc("/api/elders/", r.elderDetail)
    mux.HandleFunc("/ops/status", r.status)
    mux.HandleFunc("/ops/metrics", r.metrics)
    mux.HandleFunc("/ops/health", r.health)
}

func (r *Router) ingestCall(w http.ResponseWriter, req *http.Request) {
    if req.Method != http.MethodPost {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    var payload ingest.Payload
    if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
        return
    }
    rec, task, err := r.ingester.Ingest(req.Context(), payload)
    var invalid *ingest.ErrInvalid
    switch {
    case errors.As(err, &invalid):
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", invalid.Error())
        return
    case errors.Is(err, store.ErrNotFound):
        respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
        return
    case err != nil:
        respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
        return
    }
    respondStatus(w, http.StatusCreated, map[string]any{"callId": rec.ID, "taskId": task.ID})
}

func (r *Router) elders(w http.ResponseWriter, req *http.Request) {
    switch req.Method {
    case http.MethodGet:
        list, err := r.store.ListElders(req.Context())
        if err != nil {
            http.Error(w, err.Error(), http.StatusInternalServerError)
            return
        }
        respondJSON(w, list)
    case http.MethodPost:
        var body struct {
            Name  string `json:"name"`
            Phone string `json:"phone"`
        }
        if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
            respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
            return
        }
        if strings.TrimSpace(body.Name) == "" {
            respondError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
            return
        }
        elder, err := r.store.CreateElder(req.Context(), body.Name, body.Phone, time.Now().UTC())
        if err != nil {
            http.Error(w, err.Error(), http.StatusInternalServerError)
            return
        }
        respondStatus(w, http.StatusCreated, elder)
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
    }
}

// elderDetail routes /api/elders/{id}/(daily|weekly|settings|schedules).
func (r *Router) elderDetail(w http.ResponseWriter, req *http.Request) {
    parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/api/elders/"), "/")
    if len(parts) != 2 {
        http.NotFound(w, req)
        return
    }
    elderID, err := strconv.ParseInt(parts[0], 10, 64)
    if err != nil {
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid elder id")
        return
    }
    switch parts[1] {
    case "daily":
        r.dailyRollup(w, req, elderID)
    case "weekly":
        r.weeklyRollup(w, req, elderID)
    case "settings":
        r.settings(w, req, elderID)
    case "schedules":
        r.schedules(w, req, elderID)
    default:
        http.NotFound(w, req)
    }
}

func (r *Router) dailyRollup(w http.ResponseWriter, req *http.Request, elderID int64) {
    date, ok := queryDate(w, req)
    if !ok {
        return
    }
    rollup, err := r.store.DailyRollup(req.Context(), elderID, date)
    if errors.Is(err, store.ErrNotFound) {
        respondError(w, http.StatusNotFound, "NOT_FOUND", "no daily rollup")
        return
    }
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    respondJSON(w, rollup)
}

func (r *Router) weeklyRollup(w http.ResponseWriter, req *http.Request, elderID int64) {
    date, ok := queryDate(w, req)
    if !ok {
        return
    }
    rollup, err := r.store.WeeklyRollup(req.Context(), elderID, stats.WeekStart(date))
    if errors.Is(err, store.ErrNotFound) {
        respondError(w, http.StatusNotFound, "NOT_FOUND", "no weekly rollup")
        return
    }
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    respondJSON(w, rollup)
}

func (r *Router) settings(w http.ResponseWriter, req *http.Request, elderID int64) {
    switch req.Method {
    case http.MethodGet:
        setting, err := r.store.SettingByElder(req.Context(), elderID)
        if errors.Is(err, store.ErrNotFound) {
            respondError(w, http.StatusNotFound, "NOT_FOUND", "no call setting")
            return
        }
        if err != nil {
            http.Error(w, err.Error(), http.StatusInternalServerError)
            return
        }
        respondJSON(w, setting)
        return
    case http.MethodPost:
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    var body struct {
        FirstCallTime  string  `json:"firstCallTime"`
        SecondCallTime *string `json:"secondCallTime"`
        ThirdCallTime  *string `json:"thirdCallTime"`
    }
    if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
        return
    }
    if body.FirstCallTime == "" {
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", "firstCallTime is required")
        return
    }
    setting, err := r.store.CreateSetting(req.Context(), &model.CareCallSetting{
        ElderID:        elderID,
        FirstCallTime:  body.FirstCallTime,
        SecondCallTime: body.SecondCallTime,
        ThirdCallTime:  body.ThirdCallTime,
    })
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    respondStatus(w, http.StatusCreated, setting)
}

func (r *Router) schedules(w http.ResponseWriter, req *http.Request, elderID int64) {
    switch req.Method {
    case http.MethodGet:
        list, err := r.store.SchedulesByElder(req.Context(), elderID)
        if err != nil {
            http.Error(w, err.Error(), http.StatusInternalServerError)
            return
        }
        respondJSON(w, list)
    case http.MethodPost:
        var body struct {
            Name string `json:"name"`
            Slot string `json:"slot"`
        }
        if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
            respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
            return
        }
        slot, ok := model.SlotFromLabel(body.Slot)
        if !ok || strings.TrimSpace(body.Name) == "" {
            respondError(w, http.StatusBadRequest, "BAD_REQUEST", "name and slot are required")
            return
        }
        schedule, err := r.store.CreateSchedule(req.Context(), &model.MedicationSchedule{
            ElderID: elderID,
            Name:    body.Name,
            Slot:    slot,
        })
        if err != nil {
            http.Error(w, err.Error(), http.StatusInternalServerError)
            return
        }
        respondStatus(w, http.StatusCreated, schedule)
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
    }
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
    ctx := req.Context()
    counts, err := r.store.CountTasksByStatus(ctx)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    pending, _ := r.store.PendingTasks(ctx, 10)
    respondJSON(w, map[string]any{"tasks": counts, "pending": pending, "workers": r.cfg.WorkerCount})
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) {
    respondJSON(w, metrics.Snapshot())
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
    if err := r.store.Health(req.Context()); err != nil {
        http.Error(w, err.Error(), http.StatusServiceUnavailable)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today.
func queryDate(w http.ResponseWriter, req *http.Request) (time.Time, bool) {
    raw := req.URL.Query().Get("date")
    if raw == "" {
        now := time.Now().UTC()
        return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
    }
    date, err := time.Parse("2006-01-02", raw)
    if err != nil {
        respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date")
        return time.Time{}, false
    }
    return date, true
}

func respondJSON(w http.ResponseWriter, payload any) {
    w.Header().Set("Content-Type", "application/json")
    if err := json.NewEncoder(w).Encode(payload); err != nil {
        log.Printf("write json: %v", err)
    }
}

func respondStatus(w http.ResponseWriter, status int, payload any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    if err := json.NewEncoder(w).Encode(payload); err != nil {
        log.Printf("write json: %v", err)
    }
}

func respondError(w http.ResponseWriter, status int, code, message string) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    if err := json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message}); err != nil {
        log.Printf("write json: %v", err)
    }
}
