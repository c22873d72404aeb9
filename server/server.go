// Package server wires the buffer, streaming engine, serializers, asset
// store, and file cache onto HTTP routes: the REST sink a shop-floor
// client actually talks to. Route registration and request dispatch
// follow the teacher's declarative mux-and-handler split; everything
// downstream of routing (buffer reads, checkpoint replay, streaming) is
// the domain logic specified elsewhere in this module.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtconnect-go/agentcore/assets"
	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/config"
	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/filecache"
	"github.com/mtconnect-go/agentcore/logging"
	"github.com/mtconnect-go/agentcore/loopback"
	"github.com/mtconnect-go/agentcore/metrics"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/printer"
	"github.com/mtconnect-go/agentcore/router"
)

// Server is the agent's HTTP surface: one Router multiplexing probe,
// current, sample, asset, loopback-ingest, cancel, and file-cache
// fall-through requests over a shared buffer and device tree.
type Server struct {
	cfg     *config.Config
	buf     *buffer.Buffer
	assets  *assets.Store
	files   *filecache.Cache
	metrics *metrics.Registry
	rt      *router.Router

	instanceID int64

	treeMu sync.RWMutex
	tree   *model.Tree

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New builds a Server and registers every route. tree may be swapped
// later with SetTree on a device-model reload.
func New(cfg *config.Config, buf *buffer.Buffer, tree *model.Tree, assetStore *assets.Store, files *filecache.Cache, m *metrics.Registry) *Server {
	s := &Server{
		cfg:        cfg,
		buf:        buf,
		assets:     assetStore,
		files:      files,
		metrics:    m,
		rt:         router.New(),
		instanceID: time.Now().Unix(),
		tree:       tree,
		cancels:    make(map[string]context.CancelFunc),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler, wrapping dispatch with request
// logging and metrics timing the same way the router's declared routes
// are instrumented.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.rt.ServeHTTP(sw, r)
	if s.metrics != nil {
		s.metrics.Observe(r.Pattern, sw.status, time.Since(start))
	}
	logging.FromContext(r.Context()).Debug("request handled",
		"method", r.Method, "path", r.URL.Path, "status", sw.status, "duration_ms", time.Since(start).Milliseconds())
}

// SetTree swaps the device tree after a config reload. In-flight requests
// that already captured the old *model.Tree keep working against it;
// only new requests see the replacement.
func (s *Server) SetTree(tree *model.Tree) {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	s.tree = tree
}

func (s *Server) currentTree() *model.Tree {
	s.treeMu.RLock()
	defer s.treeMu.RUnlock()
	return s.tree
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) registerRoutes() {
	for _, pattern := range []string{"/", "/probe", "/{device}", "/{device}/probe"} {
		s.rt.Handle(router.Route{Method: "GET", Pattern: pattern, Handler: s.handleProbe}, s.writeError)
	}

	currentParams := []router.ParamSpec{
		{Name: "path", Part: router.PartQuery, Type: router.TypeString},
		{Name: "at", Part: router.PartQuery, Type: router.TypeUnsignedInteger},
		{Name: "format", Part: router.PartQuery, Type: router.TypeString},
		{Name: "pretty", Part: router.PartQuery, Type: router.TypeBool, Default: false},
	}
	for _, pattern := range []string{"/current", "/{device}/current"} {
		s.rt.Handle(router.Route{Method: "GET", Pattern: pattern, Params: currentParams, Handler: s.handleCurrent}, s.writeError)
	}

	maxCount := int64(s.cfg.BufferSize + 1)
	sampleParams := []router.ParamSpec{
		{Name: "path", Part: router.PartQuery, Type: router.TypeString},
		{Name: "from", Part: router.PartQuery, Type: router.TypeUnsignedInteger},
		{Name: "to", Part: router.PartQuery, Type: router.TypeUnsignedInteger},
		{Name: "count", Part: router.PartQuery, Type: router.TypeInteger, Default: int64(100), Minimum: negPtr(maxCount), Maximum: &maxCount},
		{Name: "interval", Part: router.PartQuery, Type: router.TypeInteger, Minimum: zeroPtr(), Maximum: int32MaxPtr()},
		{Name: "heartbeat", Part: router.PartQuery, Type: router.TypeInteger, Default: int64(10000), Minimum: onePtr(), Maximum: int32MaxPtr()},
		{Name: "format", Part: router.PartQuery, Type: router.TypeString},
	}
	for _, pattern := range []string{"/sample", "/{device}/sample"} {
		s.rt.Handle(router.Route{Method: "GET", Pattern: pattern, Params: sampleParams, Handler: s.handleSample}, s.writeError)
	}

	assetListParams := []router.ParamSpec{
		{Name: "type", Part: router.PartQuery, Type: router.TypeString},
		{Name: "removed", Part: router.PartQuery, Type: router.TypeBool, Default: false},
		{Name: "count", Part: router.PartQuery, Type: router.TypeInteger, Default: int64(100)},
		{Name: "format", Part: router.PartQuery, Type: router.TypeString},
	}
	for _, pattern := range []string{"/asset", "/assets", "/{device}/asset", "/{device}/assets"} {
		s.rt.Handle(router.Route{Method: "GET", Pattern: pattern, Params: assetListParams, Handler: s.handleAssetList}, s.writeError)
	}
	for _, pattern := range []string{"/asset/{assetIds}", "/assets/{assetIds}"} {
		s.rt.Handle(router.Route{Method: "GET", Pattern: pattern, Handler: s.handleAssetGet}, s.writeError)
	}

	ingestParams := []router.ParamSpec{{Name: "time", Part: router.PartQuery, Type: router.TypeString}}
	for _, method := range []string{"PUT", "POST"} {
		s.rt.Handle(router.Route{Method: method, Pattern: "/{device}", Params: ingestParams, Handler: s.handleIngest}, s.writeError)
	}

	assetPutParams := []router.ParamSpec{
		{Name: "type", Part: router.PartQuery, Type: router.TypeString},
		{Name: "device", Part: router.PartQuery, Type: router.TypeString},
	}
	for _, method := range []string{"PUT", "POST"} {
		s.rt.Handle(router.Route{Method: method, Pattern: "/asset/{assetId}", Params: assetPutParams, Handler: s.handleAssetPut}, s.writeError)
		s.rt.Handle(router.Route{Method: method, Pattern: "/asset", Params: assetPutParams, Handler: s.handleAssetPutNoID}, s.writeError)
	}

	s.rt.Handle(router.Route{Method: "DELETE", Pattern: "/asset/{assetId}", Handler: s.handleAssetDelete}, s.writeError)
	deleteParams := []router.ParamSpec{
		{Name: "assetIds", Part: router.PartQuery, Type: router.TypeString},
		{Name: "device", Part: router.PartQuery, Type: router.TypeString},
	}
	s.rt.Handle(router.Route{Method: "DELETE", Pattern: "/asset", Params: deleteParams, Handler: s.handleAssetDeleteMany}, s.writeError)

	// The wire shape is literally "/cancel/id={id}" (spec.md's routing
	// table), but http.ServeMux wildcards must occupy a whole path
	// segment — a literal prefix can't share a segment with "{id}" — so
	// the route captures the whole "id=..." segment and the handler
	// strips the "id=" prefix itself.
	s.rt.Handle(router.Route{Method: "GET", Pattern: "/cancel/{idParam}", Handler: s.handleCancel}, s.writeError)

	if s.metrics != nil {
		s.rt.Handle(router.Route{Method: "GET", Pattern: "/metrics", Handler: s.handleMetrics}, s.writeError)
	}

	s.rt.Handle(router.Route{Method: "GET", Pattern: "/{path...}", Handler: s.handleFile}, s.writeError)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ router.Values) {
	s.metrics.Handler().ServeHTTP(w, r)
}

// writeError serializes an error in the request's negotiated format and
// status, per the closed error taxonomy.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, many *errs.Many) {
	standardHeaders(w, nil)
	f := negotiate(r, jsonVersionOf(s.cfg))
	h := s.header(nil)

	var body []byte
	var err error
	variant := errorVariant(s.cfg.SchemaVersion)
	if f == formatXML {
		body, err = printer.PrintErrorXML(h, many, variant)
	} else {
		body, err = printer.PrintErrorJSON(h, many, variant)
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", f.contentType())
	w.WriteHeader(many.Status())
	w.Write(body)
}

func (s *Server) header(cp *buffer.Checkpoint) printer.Header {
	h := printer.Header{
		CreationTime:          time.Now(),
		Sender:                s.cfg.Sender,
		InstanceID:            s.instanceID,
		Version:               s.cfg.AgentVersion,
		SchemaVersion:         s.cfg.SchemaVersion,
		BufferSize:            s.cfg.BufferSize,
		AssetBufferSize:       s.cfg.AssetBufferSize,
		DeviceModelChangeTime: s.currentTree().ChangeTime,
	}
	if s.assets != nil {
		h.AssetCount = s.assets.Count("")
		types := s.assets.Types()
		if len(types) > 0 {
			h.AssetCountsByType = make(map[string]int, len(types))
			for _, t := range types {
				h.AssetCountsByType[t] = s.assets.Count(t)
			}
		}
	}
	if cp != nil {
		h.FirstSequence = s.buf.FirstSeq()
		h.NextSequence = s.buf.NextSeq()
		if h.NextSequence > 0 {
			h.LastSequence = h.NextSequence - 1
		}
	}
	return h
}

func jsonVersionOf(cfg *config.Config) int {
	if cfg == nil || cfg.JSONVersion != 2 {
		return 1
	}
	return 2
}

func errorVariant(schemaVersion string) printer.ErrorSchemaVariant {
	switch schemaVersion {
	case "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "1.8", "2.0", "2.1", "2.2", "2.3", "2.4", "2.5":
		return printer.ErrorSchemaPre26
	default:
		return printer.ErrorSchemaV26Plus
	}
}

func (s *Server) newAssetID() string {
	return uuid.NewString()
}

func (s *Server) ingestor() *loopback.Ingestor {
	return &loopback.Ingestor{Buf: s.buf, Tree: s.currentTree()}
}

func negPtr(v int64) *int64 {
	n := -v
	return &n
}

func zeroPtr() *int64 {
	var z int64
	return &z
}

func onePtr() *int64 {
	o := int64(1)
	return &o
}

// int32MaxPtr returns INT32_MAX-1, the upper bound the spec requires for
// interval/heartbeat millisecond parameters.
func int32MaxPtr() *int64 {
	m := int64(2147483646)
	return &m
}
