package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/store"
)

// startTestApp wires an app over a channel source and starts its pipeline.
func startTestApp(t *testing.T, s *store.Store) (*app.App, *landmark.ChannelSource) {
	t.Helper()

	src := landmark.NewChannelSource(16)
	a, err := app.New(app.Config{Store: s, Source: src, SourceName: "test"})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	t.Cleanup(a.Stop)
	return a, src
}

// feedFace pushes one frame with a synthetic face through the pipeline and
// returns the published output.
func feedFace(t *testing.T, a *app.App, src *landmark.ChannelSource, ts int64, gaze landmark.Point) app.Output {
	t.Helper()

	ch := a.Subscribe()
	defer a.Unsubscribe(ch)
	if !src.Publish(&landmark.Frame{TS: ts, Face: landmark.SyntheticFace(gaze)}) {
		t.Fatal("frame publish failed")
	}
	select {
	case out := <-ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame processing")
	}
	return app.Output{}
}

// irisFor maps a screen target to a synthetic iris position through a fixed
// affine transform, so a least-squares fit recovers the mapping exactly.
func irisFor(target landmark.Point) landmark.Point {
	return landmark.Point{
		X: 0.8*target.X + 0.1*target.Y + 0.1,
		Y: -0.05*target.X + 0.7*target.Y + 0.15,
	}
}

// wsURL rewrites an httptest server URL into its WebSocket form.
func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestAPI_CalibrationWorkflow(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a, src := startTestApp(t, s)

	srv := New(Config{App: a, Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Calibration starts inactive
	resp, err := client.Get(ts.URL + "/api/calibration")
	if err != nil {
		t.Fatalf("GET /api/calibration error = %v", err)
	}
	var state struct {
		Active  bool             `json:"active"`
		Fitted  bool             `json:"fitted"`
		Targets []landmark.Point `json:"targets"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.Active || state.Fitted {
		t.Fatalf("initial state = %+v, want inactive and unfitted", state)
	}

	// 2. Start a session
	resp, err = client.Post(ts.URL+"/api/calibration/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/calibration/start error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var started struct {
		Targets []landmark.Point `json:"targets"`
	}
	json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if len(started.Targets) != 9 {
		t.Fatalf("len(targets) = %d, want 9", len(started.Targets))
	}

	// 3. Capture a sample on every target
	for i, target := range started.Targets {
		feedFace(t, a, src, int64(i+1), irisFor(target))

		body := fmt.Sprintf(`{"index": %d}`, i)
		resp, err = client.Post(ts.URL+"/api/calibration/points", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST /api/calibration/points error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("capture(%d) status = %d, want %d", i, resp.StatusCode, http.StatusOK)
		}
		resp.Body.Close()
	}

	// 4. Fit the model
	resp, err = client.Post(ts.URL+"/api/calibration/fit", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/calibration/fit error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fit status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var result app.FitResult
	json.NewDecoder(resp.Body).Decode(&result)
	resp.Body.Close()
	if !result.OK {
		t.Fatalf("fit result = %+v, want OK", result)
	}
	if result.Samples != 9 {
		t.Errorf("fit samples = %d, want 9", result.Samples)
	}

	// 5. State reports the fitted model
	resp, _ = client.Get(ts.URL + "/api/calibration")
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.Active {
		t.Error("calibration should end after a successful fit")
	}
	if !state.Fitted {
		t.Error("state should report a fitted model")
	}

	// 6. The next frame maps through the model
	out := feedFace(t, a, src, 100, irisFor(landmark.Point{X: 0.5, Y: 0.5}))
	if out.Gaze == nil {
		t.Fatal("expected a mapped gaze point after calibration")
	}
	if math.Abs(out.Gaze.X-0.5) > 1e-6 || math.Abs(out.Gaze.Y-0.5) > 1e-6 {
		t.Errorf("mapped gaze = (%v, %v), want (0.5, 0.5)", out.Gaze.X, out.Gaze.Y)
	}

	// 7. The fit attempt was persisted under the running session
	resp, err = client.Get(ts.URL + "/api/sessions/" + a.SessionID() + "/fits")
	if err != nil {
		t.Fatalf("GET fits error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET fits status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var fits struct {
		Fits []store.Fit `json:"fits"`
	}
	json.NewDecoder(resp.Body).Decode(&fits)
	resp.Body.Close()
	if len(fits.Fits) != 1 {
		t.Fatalf("len(fits) = %d, want 1", len(fits.Fits))
	}
	if !fits.Fits[0].OK || fits.Fits[0].Samples != 9 {
		t.Errorf("persisted fit = %+v, want OK with 9 samples", fits.Fits[0])
	}
}

func TestAPI_TuningRoundTrip(t *testing.T) {
	a, _ := startTestApp(t, nil)

	srv := New(Config{App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Defaults are empty
	resp, err := client.Get(ts.URL + "/api/tuning")
	if err != nil {
		t.Fatalf("GET /api/tuning error = %v", err)
	}
	var tuning config.Tuning
	json.NewDecoder(resp.Body).Decode(&tuning)
	resp.Body.Close()
	if tuning.Strategy != nil {
		t.Errorf("default strategy = %v, want unset", *tuning.Strategy)
	}

	// 2. Apply an override
	body := `{"strategy": "moving_average", "window": 2}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/tuning", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/tuning error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 3. The override is readable back
	resp, _ = client.Get(ts.URL + "/api/tuning")
	json.NewDecoder(resp.Body).Decode(&tuning)
	resp.Body.Close()
	if tuning.Strategy == nil || *tuning.Strategy != "moving_average" {
		t.Errorf("strategy = %v, want moving_average", tuning.Strategy)
	}
	if tuning.Window == nil || *tuning.Window != 2 {
		t.Errorf("window = %v, want 2", tuning.Window)
	}
}

func TestAPI_LiveStream(t *testing.T) {
	a, src := startTestApp(t, nil)

	srv := New(Config{App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/live"), nil)
	if err != nil {
		t.Fatalf("dial /api/live error = %v", err)
	}
	defer conn.Close()

	// The handler subscribes after the handshake, so keep publishing until a
	// frame lands on the stream
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		frameTS := int64(1)
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				src.Publish(&landmark.Frame{TS: frameTS, Face: landmark.SyntheticFace(landmark.Point{X: 0.3, Y: 0.6})})
				frameTS++
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out app.Output
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read live output error = %v", err)
	}
	if out.Raw == nil {
		t.Fatal("expected a raw gaze sample in the output")
	}
	if math.Abs(out.Raw.X-0.3) > 1e-9 || math.Abs(out.Raw.Y-0.6) > 1e-9 {
		t.Errorf("raw gaze = (%v, %v), want (0.3, 0.6)", out.Raw.X, out.Raw.Y)
	}
}

func TestAPI_IngestStream(t *testing.T) {
	src := landmark.NewChannelSource(16)
	a, err := app.New(app.Config{Source: src, SourceName: "detector"})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	t.Cleanup(a.Stop)

	srv := New(Config{App: a, Ingest: src})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/ingest"), nil)
	if err != nil {
		t.Fatalf("dial /api/ingest error = %v", err)
	}
	defer conn.Close()

	// 1. A second detector connection is refused
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/api/ingest"), nil)
	if err == nil {
		t.Fatal("expected second dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("second dial response = %v, want status %d", resp, http.StatusConflict)
	}

	// 2. A pushed frame flows through the pipeline
	ch := a.Subscribe()
	defer a.Unsubscribe(ch)

	frame := &landmark.Frame{TS: 7, Face: landmark.SyntheticFace(landmark.Point{X: 0.2, Y: 0.8})}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame error = %v", err)
	}

	select {
	case out := <-ch:
		if out.TS != 7 {
			t.Errorf("output ts = %d, want 7", out.TS)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingested frame")
	}

	// 3. Malformed frames are counted and skipped
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write malformed frame error = %v", err)
	}
	if err := conn.WriteJSON(&landmark.Frame{TS: 8, Face: landmark.SyntheticFace(landmark.Point{X: 0.5, Y: 0.5})}); err != nil {
		t.Fatalf("write frame error = %v", err)
	}

	select {
	case out := <-ch:
		if out.TS != 8 {
			t.Errorf("output ts = %d, want 8", out.TS)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame after malformed input")
	}

	healthResp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer healthResp.Body.Close()
	var health struct {
		Malformed int64 `json:"malformed_frames"`
	}
	json.NewDecoder(healthResp.Body).Decode(&health)
	if health.Malformed != 1 {
		t.Errorf("malformed_frames = %d, want 1", health.Malformed)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
