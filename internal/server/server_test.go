package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-draw/internal/config"
	"github.com/joeblew999/plat-draw/internal/draw"
	"github.com/joeblew999/plat-draw/internal/geo"
	"github.com/joeblew999/plat-draw/internal/remote"
)

var (
	view  = geo.Viewport{Center: geo.GeoPoint{Lat: 14.6, Lng: 120.985}, Zoom: 14}
	frame = geo.Frame{
		Bounds: geo.Rect{
			NorthEast: geo.GeoPoint{Lat: 14.61, Lng: 120.995},
			SouthWest: geo.GeoPoint{Lat: 14.59, Lng: 120.975},
		},
		Width:  800,
		Height: 600,
	}
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return v
}

type sessionJSON struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	LastError string `json:"lastError"`
	Boundary  *struct {
		Vertices []geo.GeoPoint `json:"vertices"`
		Radius   float64        `json:"radius"`
	} `json:"boundary"`
}

func links(w *httptest.ResponseRecorder) string {
	return strings.Join(w.Header().Values("Link"), "\n")
}

// square traces the middle half of the frame.
func square() []draw.PointerEvent {
	pts := []geo.ScreenPoint{{X: 200, Y: 150}, {X: 600, Y: 150}, {X: 600, Y: 450}, {X: 200, Y: 450}, {X: 200, Y: 150}}
	evs := []draw.PointerEvent{{Type: draw.PointerDown, Kind: draw.PointerPen, Point: pts[0]}}
	for i := 1; i < len(pts); i++ {
		for s := 1; s <= 4; s++ {
			k := float64(s) / 4
			evs = append(evs, draw.PointerEvent{Type: draw.PointerMove, Kind: draw.PointerPen, Point: geo.ScreenPoint{
				X: pts[i-1].X + (pts[i].X-pts[i-1].X)*k,
				Y: pts[i-1].Y + (pts[i].Y-pts[i-1].Y)*k,
			}})
		}
	}
	return append(evs, draw.PointerEvent{Type: draw.PointerUp, Kind: draw.PointerPen, Point: pts[0]})
}

func TestHealthAndRoot(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
	if l := links(w); !strings.Contains(l, `</openapi.json>; rel="service-desc"`) || !strings.Contains(l, `</api/v1/sessions>; rel="sessions"`) {
		t.Fatalf("health links:\n%s", l)
	}

	w = do(t, srv, http.MethodGet, "/", nil)
	if got := decode[map[string]string](t, w); got["service"] != "plat-draw" {
		t.Fatalf("root=%v", got)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/info", nil)
	info := decode[map[string]any](t, w)
	if info["db"] != true || info["sessions"] != float64(0) {
		t.Fatalf("info=%v", info)
	}
}

func TestDrawingSessionOverHTTP(t *testing.T) {
	clk := clock.NewMock()
	// the panel search limit must not cap the paged REST search
	drawCfg := config.Default()
	drawCfg.Listings.SearchLimit = 1
	srv := newTestServer(t, Config{Draw: drawCfg, Clock: clk, Go: func(fn func()) { fn() }})

	w := do(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body)
	}
	sess := decode[sessionJSON](t, w)
	base := "/api/v1/sessions/" + sess.ID
	if sess.State != "idle" || !strings.Contains(links(w), `rel="draw"; method="POST"`) {
		t.Fatalf("created %+v links:\n%s", sess, links(w))
	}

	v, f := view, frame
	w = do(t, srv, http.MethodPost, base+"/view", remote.Report{View: &v, Frame: &f, MarkersReady: true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("view status=%d body=%s", w.Code, w.Body)
	}

	w = do(t, srv, http.MethodPost, base+"/draw", nil)
	if got := decode[sessionJSON](t, w); got.State != "drawing" {
		t.Fatalf("after draw: %+v", got)
	}
	if l := links(w); !strings.Contains(l, `rel="cancel"`) || strings.Contains(l, `rel="draw"`) {
		t.Fatalf("drawing links:\n%s", l)
	}

	if w = do(t, srv, http.MethodGet, base+"/boundary", nil); w.Code != http.StatusNotFound {
		t.Fatalf("boundary before commit status=%d", w.Code)
	}

	w = do(t, srv, http.MethodPost, base+"/pointer", map[string]any{"events": square()})
	if w.Code != http.StatusOK {
		t.Fatalf("pointer status=%d body=%s", w.Code, w.Body)
	}
	clk.Add(draw.DefaultFeedbackDelay)

	w = do(t, srv, http.MethodGet, base, nil)
	got := decode[sessionJSON](t, w)
	if got.State != "boundary_active" || got.Boundary == nil || len(got.Boundary.Vertices) < 4 {
		t.Fatalf("after gesture: %+v", got)
	}
	if l := links(w); !strings.Contains(l, `rel="clear"`) || !strings.Contains(l, `rel="listings"; method="GET"`) {
		t.Fatalf("active links:\n%s", l)
	}

	w = do(t, srv, http.MethodGet, base+"/boundary", nil)
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("boundary content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"Polygon"`) {
		t.Fatalf("boundary=%s", w.Body)
	}

	// listings: one inside the square, one outside
	w = do(t, srv, http.MethodPost, "/api/v1/listings", `[
		{"id":"in-1","title":"Loft","price":100,"lat":14.600,"lng":120.985},
		{"id":"in-2","schemaVersion":2,"title":"Flat","pricing":{"amount":200,"currency":"PHP"},"location":{"latitude":14.601,"longitude":120.986}},
		{"id":"out","title":"Far","lat":14.70,"lng":121.10}
	]`)
	if w.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", w.Code, w.Body)
	}
	if imp := decode[map[string]int](t, w); imp["imported"] != 3 || imp["count"] != 3 {
		t.Fatalf("import=%v", imp)
	}

	tile := maptile.At(orb.Point{120.985, 14.600}, 14)
	w = do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/listings/tiles/%d/%d/%d", tile.Z, tile.X, tile.Y), nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/vnd.mapbox-vector-tile" {
		t.Fatalf("tile status=%d headers=%v", w.Code, w.Header())
	}
	if w = do(t, srv, http.MethodGet, "/api/v1/listings/tiles/3/0/0", nil); w.Code != http.StatusNoContent {
		t.Fatalf("empty tile status=%d", w.Code)
	}
	if w = do(t, srv, http.MethodGet, "/api/v1/listings/tiles/3/9/0", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("out of range tile status=%d", w.Code)
	}

	w = do(t, srv, http.MethodGet, base+"/listings?limit=1", nil)
	page := decode[struct {
		Total int `json:"total"`
		Data  []struct {
			ID string `json:"id"`
		} `json:"data"`
	}](t, w)
	if page.Total != 2 || len(page.Data) != 1 || page.Data[0].ID != "in-1" {
		t.Fatalf("page=%+v", page)
	}
	if !strings.Contains(links(w), `rel="next"`) {
		t.Fatalf("page links:\n%s", links(w))
	}

	w = do(t, srv, http.MethodPost, base+"/save", map[string]string{"name": "Test Area"})
	if w.Code != http.StatusCreated {
		t.Fatalf("save status=%d body=%s", w.Code, w.Body)
	}
	if w = do(t, srv, http.MethodGet, "/api/v1/areas/test_area", nil); w.Code != http.StatusOK {
		t.Fatalf("saved area status=%d", w.Code)
	}
	if w = do(t, srv, http.MethodPost, base+"/save", map[string]string{"name": "Test Area"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate save status=%d", w.Code)
	}

	w = do(t, srv, http.MethodPost, base+"/clear", nil)
	if got := decode[sessionJSON](t, w); got.State != "idle" || got.Boundary != nil {
		t.Fatalf("after clear: %+v", got)
	}
	if w = do(t, srv, http.MethodGet, base+"/listings", nil); w.Code != http.StatusConflict {
		t.Fatalf("listings without boundary status=%d", w.Code)
	}

	if w = do(t, srv, http.MethodDelete, base, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w = do(t, srv, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted session status=%d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/metrics", nil)
	if !strings.Contains(w.Body.String(), `path="POST /api/v1/sessions/{id}/draw"`) {
		t.Fatal("metrics missing the draw route")
	}
}

func TestSessionFromSavedArea(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, http.MethodPost, "/api/v1/areas", map[string]any{
		"name":     "Plaza",
		"vertices": []geo.GeoPoint{{Lat: 14.60, Lng: 120.98}, {Lat: 14.60, Lng: 120.99}, {Lat: 14.595, Lng: 120.985}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create area status=%d body=%s", w.Code, w.Body)
	}

	if w = do(t, srv, http.MethodPost, "/api/v1/sessions", map[string]string{"areaId": "nowhere"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown area status=%d", w.Code)
	}
	if w = do(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"vertices": []geo.GeoPoint{{Lat: 1, Lng: 1}}}); w.Code != http.StatusBadRequest {
		t.Fatalf("short ring status=%d", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/sessions", map[string]string{"areaId": "plaza"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body)
	}
	base := "/api/v1/sessions/" + decode[sessionJSON](t, w).ID

	// the boundary renders once the browser reports marker support
	v, f := view, frame
	do(t, srv, http.MethodPost, base+"/view", remote.Report{View: &v, Frame: &f, MarkersReady: true})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := decode[sessionJSON](t, do(t, srv, http.MethodGet, base, nil))
		if got.State == "boundary_active" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never activated: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
