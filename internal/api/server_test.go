package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
)

func testServer(t *testing.T, detector *keystroke.Detector) (*Server, *core.Engine) {
	t.Helper()
	cfg := core.DefaultConfig()
	engine := core.NewEngine(cfg, core.Sources{
		Time: func(ctx context.Context) core.TimeContext {
			return core.TimeContext{Period: core.Afternoon, WorkingHours: true, Hour: 15}
		},
	}, zerolog.Nop())
	return NewServer(engine, detector, cfg, zerolog.Nop()), engine
}

func TestHandleStatus(t *testing.T) {
	s, engine := testServer(t, nil)
	engine.CollectSnapshot(context.Background())

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Running bool              `json:"running"`
		Current *core.ContextData `json:"current"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Running {
		t.Error("engine was never started")
	}
	if resp.Current == nil || resp.Current.Risk != core.RiskLow {
		t.Errorf("current = %+v, want LOW snapshot", resp.Current)
	}
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	s, _ := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodPost, "/api/v1/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleBaseline(t *testing.T) {
	det := keystroke.NewDetector(keystroke.Config{}, nil, zerolog.Nop())
	now := time.Now()
	for i := 0; i < 3; i++ {
		det.RecordKeyEvent(keystroke.KeyEvent{KeyCode: 29 + i, Action: keystroke.KeyDown, Timestamp: now})
		det.RecordKeyEvent(keystroke.KeyEvent{KeyCode: 29 + i, Action: keystroke.KeyUp, Timestamp: now.Add(90 * time.Millisecond)})
		now = now.Add(200 * time.Millisecond)
	}
	det.Assess()

	s, _ := testServer(t, det)
	rec := httptest.NewRecorder()
	s.handleBaseline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/baseline", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Baseline struct {
			Count int `json:"count"`
		} `json:"baseline"`
		Established bool    `json:"established"`
		Accuracy    float64 `json:"accuracy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Baseline.Count != 3 {
		t.Errorf("baseline count = %d, want 3", resp.Baseline.Count)
	}
	if resp.Established {
		t.Error("3 samples must not count as established")
	}
	if resp.Accuracy != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", resp.Accuracy)
	}
}

func TestHandleBaseline_NoDetector(t *testing.T) {
	s, _ := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.handleBaseline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/baseline", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without a detector", rec.Code)
	}
}

func TestHandleConfig_RedactsWebhookURL(t *testing.T) {
	s, _ := testServer(t, nil)
	s.cfg.Respond.WebhookURL = "https://hooks.example.com/secret-token"

	rec := httptest.NewRecorder()
	s.handleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-token") {
		t.Error("webhook URL leaked into the config response")
	}
	// The original config must remain untouched.
	if s.cfg.Respond.WebhookURL != "https://hooks.example.com/secret-token" {
		t.Error("sanitizing must not mutate the live config")
	}
}
