package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-facemesh/pkg/landmarker"
	"github.com/teslashibe/go-facemesh/pkg/overlay"
)

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", req.Method, req.URL.Path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestIndex(t *testing.T) {
	s := NewServer(":0")
	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %q", ct)
	}
	for _, want := range []string{"/ws/frames", "/ws/blendshapes", "/ws/status", `id="blend-shapes"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Page missing %q", want)
		}
	}
}

func TestStatusLifecycle(t *testing.T) {
	s := NewServer(":0")

	var st Status
	_, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "uninitialized" || st.Loaded || st.Error != "" || st.ErrorAt != nil {
		t.Errorf("Unexpected initial status %+v", st)
	}

	s.SetState("active")
	s.SetLoaded()
	s.SetSessionID("abc")
	s.ReportError(nil)
	s.ReportError(errors.New("camera lost"))

	_, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	st = Status{}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != "active" || !st.Loaded || st.SessionID != "abc" {
		t.Errorf("Unexpected status %+v", st)
	}
	if st.Error != "camera lost" || st.ErrorAt == nil {
		t.Errorf("Expected reported error, got %+v", st)
	}
}

func TestBlendShapes(t *testing.T) {
	s := NewServer(":0")

	_, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/blendshapes", nil))
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("Expected empty list, got %s", body)
	}

	s.Replace(overlay.BarsFromCategories([]landmarker.Category{
		{CategoryName: "jawOpen", Score: 0.5},
		{CategoryName: "eyeBlinkLeft", DisplayName: "Blink L", Score: 0.25},
	}))

	_, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/blendshapes", nil))
	var bars []overlay.Bar
	if err := json.Unmarshal(body, &bars); err != nil {
		t.Fatalf("decode bars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(bars))
	}
	if bars[0].Label != "jawOpen" || bars[0].Value != "0.5000" || bars[0].WidthPercent != 50 {
		t.Errorf("Unexpected first bar %+v", bars[0])
	}
	if bars[1].Label != "Blink L" {
		t.Errorf("Expected display name label, got %q", bars[1].Label)
	}

	s.Replace([]overlay.Bar{})
	_, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/blendshapes", nil))
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("Expected list replaced with nothing, got %s", body)
	}
}

func TestCameraEndpoints(t *testing.T) {
	s := NewServer(":0")

	resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/camera", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without camera, got %d", resp.StatusCode)
	}

	current := map[string]interface{}{"preset": "default", "width": float64(1280)}
	s.CameraConfig = func() map[string]interface{} { return current }
	s.OnCameraConfig = func(params map[string]interface{}) error {
		if p, ok := params["preset"].(string); ok {
			if p == "bogus" {
				return errors.New("unknown preset: bogus")
			}
			current["preset"] = p
		}
		return nil
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"preset", `{"preset":"1080p"}`, http.StatusOK},
		{"unknown preset", `{"preset":"bogus"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/camera", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := do(t, s, req)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}

	if current["preset"] != "1080p" {
		t.Errorf("Expected preset applied, got %v", current["preset"])
	}
}

func TestStats(t *testing.T) {
	s := NewServer(":0")
	s.Stats = func() map[string]interface{} {
		return map[string]interface{}{"loop": map[string]interface{}{"frames": 3}}
	}

	_, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats map[string]interface{}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if _, ok := stats["clients"]; !ok {
		t.Error("Expected client counts")
	}
	if _, ok := stats["loop"]; !ok {
		t.Error("Expected loop stats")
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(":0")
	for _, path := range []string{"/ws/frames", "/ws/status", "/ws/blendshapes"} {
		resp, _ := do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.StatusCode != http.StatusUpgradeRequired {
			t.Errorf("%s: expected 426, got %d", path, resp.StatusCode)
		}
	}
}
