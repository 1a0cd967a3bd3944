package httpapi

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "path/filepath"
    "testing"
    "time"

    "carecall/internal/config"
    "carecall/internal/events"
    "carecall/internal/ingest"
    "carecall/internal/model"
    "carecall/internal/store"
)

func setupTest(t *testing.T) (*http.ServeMux, *store.Store) {
    t.Helper()
    st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
    if err != nil {
        t.Fatal(err)
    }
    t.Cleanup(func() { st.Close() })
    cfg := config.Config{WorkerCount: 4}
    router := NewRouter(cfg, st, ingest.NewService(st, events.NewBus()))
    mux := http.NewServeMux()
    router.Register(mux)
    return mux, st
}

func seedElder(t *testing.T, st *store.Store) (*model.Elder, *model.CareCallSetting) {
    t.Helper()
    ctx := context.Background()
    elder, err := st.CreateElder(ctx, "김영희", "010-1234-5678", time.Now().UTC())
    if err != nil {
        t.Fatal(err)
    }
    setting, err := st.CreateSetting(ctx, &model.CareCallSetting{ElderID: elder.ID, FirstCallTime: "08:00"})
    if err != nil {
        t.Fatal(err)
    }
    return elder, setting
}

func TestIngestCallEndpoint(t *testing.T) {
    mux, st := setupTest(t)
    elder, setting := seedElder(t, st)

    payload := fmt.Sprintf(`{
        "elderId": %d,
        "settingId": %d,
        "startTime": "2025-07-16T08:10:00Z",
        "status": "completed",
        "responded": 1,
        "transcription": {"language": "ko", "segments": [{"speaker": "elder", "text": "네"}]}
    }`, elder.ID, setting.ID)
    req := httptest.NewRequest(http.MethodPost, "/internal/calls", bytes.NewBufferString(payload))
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)

    if rr.Code != http.StatusCreated {
        t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
    }
    var resp struct {
        CallID int64  `json:"callId"`
        TaskID string `json:"taskId"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
        t.Fatalf("decode: %v", err)
    }
    if resp.TaskID == "" {
        t.Fatalf("no task id in response")
    }
    task, err := st.GetTask(context.Background(), resp.TaskID)
    if err != nil {
        t.Fatalf("task not persisted: %v", err)
    }
    if task.Status != store.TaskReady {
        t.Fatalf("task status = %s", task.Status)
    }
}

func TestIngestUnknownElderRespondsNotFound(t *testing.T) {
    mux, _ := setupTest(t)

    payload := `{"elderId": 999, "settingId": 1, "status": "completed", "responded": 1, "transcription": {"segments": []}}`
    req := httptest.NewRequest(http.MethodPost, "/internal/calls", bytes.NewBufferString(payload))
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)

    if rr.Code != http.StatusNotFound {
        t.Fatalf("status = %d, want 404", rr.Code)
    }
    var resp map[string]string
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
        t.Fatalf("decode: %v", err)
    }
    if resp["code"] != "NOT_FOUND" {
        t.Fatalf("code = %q, want NOT_FOUND", resp["code"])
    }
}

func TestIngestRejectsUnknownStatus(t *testing.T) {
    mux, st := setupTest(t)
    elder, setting := seedElder(t, st)

    payload := fmt.Sprintf(`{"elderId": %d, "settingId": %d, "status": "ringing", "responded": 1, "transcription": {"segments": []}}`, elder.ID, setting.ID)
    req := httptest.NewRequest(http.MethodPost, "/internal/calls", bytes.NewBufferString(payload))
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)

    if rr.Code != http.StatusBadRequest {
        t.Fatalf("status = %d, want 400", rr.Code)
    }
}

func TestDailyRollupReadBack(t *testing.T) {
    mux, st := setupTest(t)
    elder, _ := seedElder(t, st)

    date, _ := time.Parse("2006-01-02", "2025-07-16")
    eaten := true
    if err := st.UpsertDailyRollup(context.Background(), &model.DailyRollup{
        ElderID:   elder.ID,
        Date:      date,
        Breakfast: &eaten,
        AISummary: "아침 식사를 하셨어요.",
    }); err != nil {
        t.Fatal(err)
    }

    req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/elders/%d/daily?date=2025-07-16", elder.ID), nil)
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
    }

    missing := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/elders/%d/daily?date=2025-07-17", elder.ID), nil)
    rr = httptest.NewRecorder()
    mux.ServeHTTP(rr, missing)
    if rr.Code != http.StatusNotFound {
        t.Fatalf("missing rollup status = %d, want 404", rr.Code)
    }
}

func TestOpsStatusAndMetrics(t *testing.T) {
    mux, _ := setupTest(t)

    req := httptest.NewRequest(http.MethodGet, "/ops/status", nil)
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("/ops/status = %d", rr.Code)
    }

    req = httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
    rr = httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("/ops/metrics = %d", rr.Code)
    }
    var snapshot map[string]int64
    if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
        t.Fatalf("decode metrics: %v", err)
    }
}

func TestHealthEndpoint(t *testing.T) {
    mux, _ := setupTest(t)
    req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusNoContent {
        t.Fatalf("expected 204, got %d", rr.Code)
    }
}

func TestCreateScheduleEndpoint(t *testing.T) {
    mux, st := setupTest(t)
    elder, _ := seedElder(t, st)

    body := bytes.NewBufferString(`{"name": "아스피린", "slot": "MORNING"}`)
    req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/elders/%d/schedules", elder.ID), body)
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusCreated {
        t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
    }

    schedules, err := st.SchedulesByElder(context.Background(), elder.ID)
    if err != nil {
        t.Fatal(err)
    }
    if len(schedules) != 1 || schedules[0].Slot != model.SlotMorning {
        t.Fatalf("schedules = %+v", schedules)
    }
}

func TestSettingReadBack(t *testing.T) {
    mux, st := setupTest(t)
    elder, setting := seedElder(t, st)

    req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/elders/%d/settings", elder.ID), nil)
    rr := httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusOK {
        t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
    }
    var got model.CareCallSetting
    if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
        t.Fatalf("decode: %v", err)
    }
    if got.ID != setting.ID || got.FirstCallTime != setting.FirstCallTime {
        t.Fatalf("setting = %+v, want %+v", got, setting)
    }

    req = httptest.NewRequest(http.MethodGet, "/api/elders/9999/settings", nil)
    rr = httptest.NewRecorder()
    mux.ServeHTTP(rr, req)
    if rr.Code != http.StatusNotFound {
        t.Fatalf("missing setting status = %d", rr.Code)
    }
}
