package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mtconnect-go/agentcore/assets"
	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/config"
	"github.com/mtconnect-go/agentcore/filecache"
	"github.com/mtconnect-go/agentcore/metrics"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
	"github.com/mtconnect-go/agentcore/server"
)

func newTestServer(t *testing.T, allowPut bool) (*server.Server, *model.DataItem, *buffer.Buffer) {
	t.Helper()
	dev := &model.Device{Component: model.Component{ID: "d1", Name: "Mill", UUID: "uuid-1"}}
	axes := &model.Component{ID: "c1", Name: "Axes", Type: "Axes", ParentID: "d1"}
	xpos := &model.DataItem{ID: "di1", Name: "Xpos", Type: "POSITION", Category: model.CategorySample, ComponentID: "c1"}
	tree := model.NewTree([]*model.Device{dev})
	tree.AddComponent(axes)
	tree.AddDataItem(xpos, dev)

	cfg := &config.Config{}
	cfg.ResolveDefaults()
	cfg.BufferSize = 100
	cfg.AllowPut = allowPut

	buf := buffer.New(cfg.BufferSize, cfg.CheckpointFreq)
	assetStore := assets.NewStore(cfg.AssetBufferSize)
	files := filecache.New("index.html")
	m := metrics.New()

	return server.New(cfg, buf, tree, assetStore, files, m), xpos, buf
}

func TestProbeServesDeviceTree(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `name="Mill"`) {
		t.Fatalf("expected device name in probe response, got: %s", w.Body.String())
	}
}

func TestProbeUnknownDeviceIsNoDevice(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Nonexistent/probe", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown device, got %d", w.Code)
	}
}

func TestCurrentReflectsLatestObservation(t *testing.T) {
	srv, di, buf := newTestServer(t, false)
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "12.5"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/current", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "12.5") {
		t.Fatalf("expected current value in response, got: %s", w.Body.String())
	}
}

func TestSampleWithoutIntervalReturnsRange(t *testing.T) {
	srv, di, buf := newTestServer(t, false)
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "1.0"})
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "2.0"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sample?from=0&count=10", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "2.0") {
		t.Fatalf("expected both observations in range response, got: %s", w.Body.String())
	}
}

func TestIngestRejectedWhenPutDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/Mill?Xpos=5.0", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 (Unauthorized maps to bad request) when PUT disabled, got %d", w.Code)
	}
}

func TestSampleFromOutOfRangeErrors(t *testing.T) {
	srv, di, buf := newTestServer(t, false)
	for i := 0; i < 5; i++ {
		buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "1.0"})
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sample?from=999", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 OUT_OF_RANGE for a from far past nextSeq, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "OUT_OF_RANGE") {
		t.Fatalf("expected OUT_OF_RANGE in error body, got: %s", w.Body.String())
	}
}

func TestSampleCountZeroIsOutOfRange(t *testing.T) {
	srv, di, buf := newTestServer(t, false)
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "1.0"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sample?count=0", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 OUT_OF_RANGE for an explicit count=0, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "OUT_OF_RANGE") {
		t.Fatalf("expected OUT_OF_RANGE in error body, got: %s", w.Body.String())
	}
}

func TestSampleWithoutCountDefaultsTo100(t *testing.T) {
	srv, di, buf := newTestServer(t, false)
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "1.0"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sample?from=0", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when count is omitted, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSampleIntervalOutOfRangeReportsInt32MaxBound(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sample?interval=-1", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 OUT_OF_RANGE for a negative interval, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "OUT_OF_RANGE") {
		t.Fatalf("expected OUT_OF_RANGE in error body, got: %s", body)
	}
	if !strings.Contains(body, "2147483646") {
		t.Fatalf("expected the INT32_MAX-1 bound in the error body, got: %s", body)
	}
}

func TestIngestAllowedFromAllowListedAddressEvenWhenAllowPutFalse(t *testing.T) {
	dev := &model.Device{Component: model.Component{ID: "d1", Name: "Mill", UUID: "uuid-1"}}
	axes := &model.Component{ID: "c1", Name: "Axes", Type: "Axes", ParentID: "d1"}
	xpos := &model.DataItem{ID: "di1", Name: "Xpos", Type: "POSITION", Category: model.CategorySample, ComponentID: "c1"}
	tree := model.NewTree([]*model.Device{dev})
	tree.AddComponent(axes)
	tree.AddDataItem(xpos, dev)

	cfg := &config.Config{AllowPutFrom: []string{"203.0.113.9"}}
	cfg.ResolveDefaults()
	cfg.BufferSize = 100

	buf := buffer.New(cfg.BufferSize, cfg.CheckpointFreq)
	srv := server.New(cfg, buf, tree, assets.NewStore(cfg.AssetBufferSize), filecache.New("index.html"), metrics.New())

	req := httptest.NewRequest(http.MethodPut, "/Mill?Xpos=5.0", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected allow-listed address to be permitted even with AllowPut=false, got %d: %s", w.Code, w.Body.String())
	}
	if buf.NextSeq() == 0 {
		t.Fatal("expected the ingested value to advance the buffer sequence")
	}
}

func TestIngestFoldsValueIntoBuffer(t *testing.T) {
	srv, _, buf := newTestServer(t, true)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/Mill?Xpos=7.25", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if buf.NextSeq() == 0 {
		t.Fatal("expected the ingested value to advance the buffer sequence")
	}
}

func TestAssetLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t, true)

	put := httptest.NewRecorder()
	srv.ServeHTTP(put, httptest.NewRequest(http.MethodPost, "/asset/tool-1?type=CuttingTool", strings.NewReader("<CuttingTool/>")))
	if put.Code != http.StatusOK {
		t.Fatalf("expected 200 on asset upload, got %d: %s", put.Code, put.Body.String())
	}

	get := httptest.NewRecorder()
	srv.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/asset/tool-1?format=json", nil))
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200 on asset get, got %d: %s", get.Code, get.Body.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal(get.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding asset response: %v", err)
	}

	del := httptest.NewRecorder()
	srv.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/asset/tool-1", nil))
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 on asset delete, got %d", del.Code)
	}
}

func TestAssetGetMissingIsNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/asset/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing asset, got %d", w.Code)
	}
}

func TestCancelUnknownRequestIsError(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cancel/id=nope", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown cancel id, got %d", w.Code)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	srv, _, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "mtconnect_") {
		t.Fatalf("expected mtconnect_* metrics in output, got: %s", w.Body.String())
	}
}
