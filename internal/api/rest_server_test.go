package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/storage"
)

func TestMain(m *testing.M) {
	logging.LogDir = ""
	os.Exit(m.Run())
}

type testServer struct {
	*RestServer
	engine *engine.Engine
	bus    eventbus.EventBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.VSID = 64
	cfg.Engine.MaxZ = 64
	cfg.Engine.MipLevels = 2
	cfg.Engine.Seed = 7
	cfg.Render.Width = 32
	cfg.Render.Height = 24

	e, err := engine.New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.LoadDefaultMap())

	store, err := storage.NewWorldStorage(config.StorageConfig{InMemory: true})
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus(16)
	rs, err := NewRestServer(Config{Engine: e, Store: store, Bus: bus})
	require.NoError(t, err)
	rs.outboundWebhooks.retryDelay = time.Millisecond

	t.Cleanup(func() {
		rs.Shutdown(context.Background())
		bus.Close()
		store.Close()
		e.Close()
	})
	return &testServer{RestServer: rs, engine: e, bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Data
}

func TestHealthAndInfo(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/health", nil).Code)

	rec := ts.do(t, "GET", "/api/world", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode(t, rec)
	assert.Equal(t, 64.0, info["vsid"])
	assert.Equal(t, 64.0, info["max_z"])
	assert.Equal(t, "none", info["lighting"])

	rec = ts.do(t, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "server")

	rec = ts.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxel_api_http_request_duration_seconds")
}

func TestColumnAndVoxel(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", "/api/world/column?x=a&y=1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", "/api/world/column?x=99&y=1", nil).Code)

	rec := ts.do(t, "GET", "/api/world/column?x=3&y=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Ниже дна всегда твердь
	rec = ts.do(t, "GET", "/api/world/voxel?x=3&y=4&z=64", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["solid"])

	rec = ts.do(t, "GET", "/api/world/voxel?x=-1&y=4&z=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["solid"])
}

func TestEditUpdateAndVoxel(t *testing.T) {
	ts := newTestServer(t)
	rev := ts.engine.World().Revision()

	rec := ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "sphere", Op: "insert", Center: [3]float64{32, 32, 6}, Radius: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Greater(t, decode(t, rec)["revision"], float64(rev))

	rec = ts.do(t, "GET", "/api/world/voxel?x=32&y=32&z=6", nil)
	assert.Equal(t, true, decode(t, rec)["solid"])

	rec = ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "cube", Center: [3]float64{32, 32, 6}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, "GET", "/api/world/voxel?x=32&y=32&z=6", nil)
	assert.Equal(t, false, decode(t, rec)["solid"])

	rec = ts.do(t, "POST", "/api/world/update", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["empty"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "torus"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "sphere", Op: "xor"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "sphere", Radius: -1}).Code)
}

func TestEditHugeRadiusStaysInWorld(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "melt", Center: [3]float64{0, 0, 40}, Radius: 1e9})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Greater(t, decode(t, rec)["melted"], 0.0)

	rec = ts.do(t, "GET", "/api/world/voxel?x=63&y=63&z=63", nil)
	assert.Equal(t, false, decode(t, rec)["solid"])

	rec = ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "sphere", Op: "insert", Center: [3]float64{-1e6, 5, 5}, Radius: 1e7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, "GET", "/api/world/voxel?x=63&y=63&z=63", nil)
	assert.Equal(t, true, decode(t, rec)["solid"])
}

func TestRenderIsCachedUntilEdit(t *testing.T) {
	ts := newTestServer(t)
	cam := CameraRequest{Pos: [3]float64{32, 4, 10}, Pitch: 0.3, Width: 40, Height: 30}

	rec := ts.do(t, "POST", "/api/render", cam)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "miss", rec.Header().Get("X-Frame-Cache"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	// Буфер запроса не остаётся привязанным к движку
	assert.Nil(t, ts.engine.Framebuffer())

	rec = ts.do(t, "POST", "/api/render", cam)
	assert.Equal(t, "hit", rec.Header().Get("X-Frame-Cache"))

	ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "sphere", Center: [3]float64{32, 32, 6}, Radius: 2})
	rec = ts.do(t, "POST", "/api/render", cam)
	assert.Equal(t, "miss", rec.Header().Get("X-Frame-Cache"))

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/render", CameraRequest{Width: 5000}).Code)
}

func TestCanSee(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "POST", "/api/can-see", map[string]interface{}{
		"from": [3]float64{10.5, 10.5, 0.5},
		"to":   [3]float64{20.5, 10.5, 0.5},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "visible")
}

func TestClosedEngineUnavailable(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.engine.Close())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/api/world", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/api/world/column?x=1&y=1", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/api/world/voxel?x=1&y=1&z=1", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/world/edit",
			EditRequest{Shape: "sphere", Center: [3]float64{32, 32, 6}, Radius: 2}).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/world/update", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/world/save", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/render", CameraRequest{Width: 8, Height: 8}).Code)
		// блокировка сервера освобождена после ошибок выше
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/can-see", map[string]interface{}{
			"from": [3]float64{1, 1, 1},
			"to":   [3]float64{2, 2, 2},
		}).Code)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("сервер завис после закрытия движка")
	}
}

func TestSaveLoadAndWebhook(t *testing.T) {
	ts := newTestServer(t)

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
	}))
	defer hook.Close()

	rec := ts.do(t, "POST", "/api/webhooks", OutboundWebhook{Name: "ci", URL: hook.URL, Secret: "s3", Events: []string{eventbus.TypeWorldSaved}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "rect", P0: [3]float64{1, 1, 1}, P1: [3]float64{3, 3, 3}})
	rec = ts.do(t, "POST", "/api/world/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Greater(t, decode(t, rec)["columns"], 0.0)

	select {
	case r := <-received:
		body := <-bodies
		assert.Equal(t, eventbus.TypeWorldSaved, r.Header.Get("X-Event-Type"))
		assert.Equal(t, Sign(body, "s3"), r.Header.Get("X-Webhook-Signature"))
	case <-time.After(5 * time.Second):
		t.Fatal("webhook не вызван")
	}

	// Удаляем вставленный куб и восстанавливаем мир из хранилища
	ts.do(t, "POST", "/api/world/edit", EditRequest{Shape: "cube", Center: [3]float64{2, 2, 2}})
	rec = ts.do(t, "GET", "/api/world/voxel?x=2&y=2&z=2", nil)
	require.Equal(t, false, decode(t, rec)["solid"])

	rec = ts.do(t, "POST", "/api/world/load", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, "GET", "/api/world/voxel?x=2&y=2&z=2", nil)
	assert.Equal(t, true, decode(t, rec)["solid"])
}

func TestWebhookCRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/webhooks", map[string]interface{}{"name": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", "/api/webhooks", OutboundWebhook{Name: "a", URL: "http://127.0.0.1:1", Events: []string{"*"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, "PUT", "/api/webhooks/1", map[string]interface{}{"name": "b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "b", decode(t, rec)["name"])
	assert.Equal(t, 3.0, decode(t, rec)["retry_count"])

	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/api/webhooks/1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", "/api/webhooks/x", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "DELETE", "/api/webhooks/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/api/webhooks/1", nil).Code)

	rec = ts.do(t, "GET", "/api/webhooks/events", nil)
	assert.Contains(t, rec.Body.String(), eventbus.TypeWorldEdit)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events/stream?type="+eventbus.TypeWorldSaved, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rec := ts.do(t, "POST", "/api/world/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var got []string
	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "поток закрыт")
			if l != "" {
				got = append(got, l)
			}
		case <-deadline:
			t.Fatalf("событие не пришло: %v", got)
		}
	}
	assert.Equal(t, "event:"+eventbus.TypeWorldSaved, got[0])
	assert.Contains(t, got[1], `"columns"`)
}
