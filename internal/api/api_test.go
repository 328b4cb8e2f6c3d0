package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/muninn/internal/extract"
	"github.com/starford/muninn/internal/scan"
	"github.com/starford/muninn/internal/testutil"
)

type recordingGateway struct {
	sent []string
}

func (g *recordingGateway) Send(_ context.Context, text string) error {
	g.sent = append(g.sent, text)
	return nil
}

var loc = time.FixedZone("UTC+3", 3*3600)

func testPresets() []extract.Preset {
	return []extract.Preset{{Name: "finance", Offsets: []string{"-7d", "0m"}}}
}

// testEnv sets up a temp vault, history DB, scanner, and router. A non-empty
// authToken enables token mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string, *recordingGateway) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	hist := testutil.TestHistory(t)
	gw := &recordingGateway{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := scan.Config{
		Rules: extract.Rules{
			ReviewKey:      "review_date",
			BaseDateKey:    "due_date",
			PresetKey:      "reminder_preset",
			ReviewTemplate: "Review {filename}",
			PresetTemplate: "{filename} ({offset})",
			InlineTemplate: "Task: {task}",
			Presets:        testPresets(),
			Location:       loc,
		},
		StartHour: 0,
		EndHour:   24,
		Location:  loc,
	}
	scanner := scan.New(store, hist, gw, cfg, log)

	h := NewHandler(scanner, hist, testPresets())
	router := NewRouter(h, authToken != "", authToken, nil)
	return router, vaultDir, gw
}

func TestStatusEmpty(t *testing.T) {
	router, _, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Scanning {
		t.Error("should not be scanning")
	}
	if resp.LastScan != nil {
		t.Error("no scan has run yet")
	}
	if resp.HistoryCount != 0 {
		t.Errorf("history count = %d", resp.HistoryCount)
	}
}

func TestTriggerScanDelivers(t *testing.T) {
	router, vaultDir, gw := testEnv(t, "")
	testutil.WriteNote(t, vaultDir, "acme.md", "---\nreview_date: 2020-01-01\n---\n")

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body = %s", w.Code, w.Body.String())
	}

	var res scan.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Delivered != 1 {
		t.Errorf("delivered = %d, want 1", res.Delivered)
	}
	if len(gw.sent) != 1 {
		t.Errorf("sent = %v", gw.sent)
	}

	// Status now reflects the pass.
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var st StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.LastScan == nil || st.LastScan.Delivered != 1 {
		t.Errorf("last scan = %+v", st.LastScan)
	}
	if st.HistoryCount != 1 {
		t.Errorf("history count = %d, want 1", st.HistoryCount)
	}
}

func TestUpcomingEndpoint(t *testing.T) {
	router, vaultDir, _ := testEnv(t, "")
	testutil.WriteNote(t, vaultDir, "taxes.md",
		"---\ndue_date: 2099-12-25\nreminder_preset: finance\n---\n")

	req := httptest.NewRequest(http.MethodGet, "/upcoming", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Reminders []scan.UpcomingReminder `json:"reminders"`
		Total     int                     `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router, vaultDir, _ := testEnv(t, "")
	testutil.WriteNote(t, vaultDir, "acme.md", "---\nreview_date: 2020-01-01\n---\n")

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/history?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}

func TestPresetsEndpoint(t *testing.T) {
	router, _, _ := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Presets []PresetItem `json:"presets"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Presets) != 1 || resp.Presets[0].Name != "finance" {
		t.Errorf("presets = %v", resp.Presets)
	}
}

func TestAuthRequired(t *testing.T) {
	router, _, _ := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}
