package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtconnect-go/agentcore/assets"
	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/printer"
	"github.com/mtconnect-go/agentcore/router"
	"github.com/mtconnect-go/agentcore/stream"
)

// handleProbe serves the device/component/data-item tree as an
// MTConnectDevices document for GET /probe and GET /{device}/probe.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request, _ router.Values) {
	tree := s.currentTree()
	device := r.PathValue("device")
	if device != "" && device != "probe" {
		if _, ok := tree.Device(device); !ok {
			s.writeError(w, r, errs.NoDeviceError(device))
			return
		}
	}

	standardHeaders(w, nil)
	f := negotiate(r, jsonVersionOf(s.cfg))
	h := s.header(nil)

	var body []byte
	var err error
	if f == formatXML {
		body, err = printer.PrintProbeXML(tree, h, printer.XMLOptions{Stylesheet: s.cfg.Stylesheet})
	} else {
		body, err = printer.PrintProbeJSON(tree, h)
	}
	if err != nil {
		s.writeError(w, r, errs.New(errs.InternalError, err.Error()))
		return
	}
	w.Header().Set("Content-Type", f.contentType())
	w.Write(body)
}

// handleCurrent answers a single, non-streaming snapshot for GET
// /current and GET /{device}/current.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request, vals router.Values) {
	tree := s.currentTree()
	device := r.PathValue("device")
	if device != "" {
		if _, ok := tree.Device(device); !ok {
			s.writeError(w, r, errs.NoDeviceError(device))
			return
		}
	}

	filter, ferr := resolveFilter(tree, device, vals.String("path"))
	if ferr != nil {
		s.writeError(w, r, ferr)
		return
	}

	var cp *buffer.Checkpoint
	if vals.Has("at") {
		at, verr := s.validateSeq("at", vals.Uint64("at"))
		if verr != nil {
			s.writeError(w, r, verr)
			return
		}
		var err error
		cp, err = s.buf.CheckpointAt(at, filter)
		if err != nil {
			s.writeError(w, r, errs.New(errs.OutOfRange, err.Error()))
			return
		}
	} else {
		cp = s.buf.Latest(filter)
	}

	s.writeStreamsDocument(w, r, tree, cp)
}

// handleSample serves GET /sample and GET /{device}/sample: a bounded
// range of historical observations when the client leaves "interval"
// unset, or a streaming long-poll / multipart response paced by interval
// and heartbeat when it is given.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request, vals router.Values) {
	tree := s.currentTree()
	device := r.PathValue("device")
	if device != "" {
		if _, ok := tree.Device(device); !ok {
			s.writeError(w, r, errs.NoDeviceError(device))
			return
		}
	}

	filter, ferr := resolveFilter(tree, device, vals.String("path"))
	if ferr != nil {
		s.writeError(w, r, ferr)
		return
	}

	from := s.buf.FirstSeq()
	if vals.Has("from") {
		validated, verr := s.validateSeq("from", vals.Uint64("from"))
		if verr != nil {
			s.writeError(w, r, verr)
			return
		}
		from = validated
	}
	count := 100
	if vals.Has("count") {
		n := vals.Int64("count")
		if n == 0 {
			maxCount := int64(s.cfg.BufferSize + 1)
			s.writeError(w, r, errs.OutOfRangeError("count", 0, -maxCount, maxCount))
			return
		}
		count = int(n)
	}

	var to *uint64
	if vals.Has("to") {
		validated, verr := s.validateSeq("to", vals.Uint64("to"))
		if verr != nil {
			s.writeError(w, r, verr)
			return
		}
		to = &validated
	}

	if !vals.Has("interval") {
		obs, _, _ := s.buf.GetRange(filter, count, &from, to)
		s.writeStreamsDocument(w, r, tree, buffer.FromObservations(obs))
		return
	}

	interval := time.Duration(vals.Int64("interval")) * time.Millisecond
	heartbeat := time.Duration(vals.Int64("heartbeat")) * time.Millisecond
	s.streamSample(w, r, tree, filter, from, interval, heartbeat)
}

// streamSample runs the long-lived multipart streaming response used
// when a sample request supplies an interval.
func (s *Server) streamSample(w http.ResponseWriter, r *http.Request, tree *model.Tree, filter map[string]struct{}, from uint64, interval, heartbeat time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errs.New(errs.InternalError, "streaming not supported by this response writer"))
		return
	}

	boundary := uuid.NewString()
	standardHeaders(w, map[string]string{
		"Content-Type": "multipart/mixed;boundary=" + boundary,
	})
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if id := r.URL.Query().Get("requestId"); id != "" {
		s.registerCancel(id, cancel)
		defer s.unregisterCancel(id)
	}

	f := negotiate(r, jsonVersionOf(s.cfg))

	st := &stream.Stream{Buf: s.buf, Filter: filter, From: from, Interval: interval, Heartbeat: heartbeat}
	st.Run(ctx, func(chunk stream.Chunk) error {
		var cp *buffer.Checkpoint
		if !chunk.Heartbeat {
			cp = buffer.FromObservations(chunk.Observations)
		}

		h := s.header(nil)
		var body []byte
		var err error
		switch {
		case f == formatXML:
			body, err = printer.PrintStreamsXML(tree, h, cp, printer.XMLOptions{Stylesheet: s.cfg.Stylesheet})
		case f == formatJSONv2:
			body, err = printer.PrintStreamsJSONv2(tree, h, cp)
		default:
			body, err = printer.PrintStreamsJSONv1(tree, h, cp)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", boundary, f.contentType(), len(body))
		w.Write(body)
		fmt.Fprint(w, "\r\n")
		flusher.Flush()
		return nil
	})
}

func (s *Server) registerCancel(id string, cancel context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.cancels[id] = cancel
}

func (s *Server) unregisterCancel(id string) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	delete(s.cancels, id)
}

// handleCancel implements GET /cancel/id={id}: ends an in-flight
// streaming request identified by the requestId it was started with.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, _ router.Values) {
	id := strings.TrimPrefix(r.PathValue("idParam"), "id=")
	s.cancelMu.Lock()
	cancel, ok := s.cancels[id]
	s.cancelMu.Unlock()
	if !ok {
		s.writeError(w, r, errs.New(errs.InvalidRequest, "no active request '"+id+"'"))
		return
	}
	cancel()
	standardHeaders(w, nil)
	w.WriteHeader(http.StatusOK)
}

// handleIngest implements the loopback PUT/POST /{device} data source:
// query parameters (or an SHDR-style body of key=value pairs) become
// observations folded straight into the buffer.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, _ router.Values) {
	if !s.cfg.PutAllowedFrom(remoteHost(r)) {
		s.writeError(w, r, errs.New(errs.Unauthorized, "'"+remoteHost(r)+"' is not an allowed source"))
		return
	}

	device := r.PathValue("device")
	tree := s.currentTree()
	if _, ok := tree.Device(device); !ok {
		s.writeError(w, r, errs.NoDeviceError(device))
		return
	}

	values := map[string]string{}
	for k, vs := range r.URL.Query() {
		if k == "time" || len(vs) == 0 {
			continue
		}
		values[k] = vs[0]
	}

	if r.ContentLength != 0 {
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "*") {
				continue
			}
			for _, field := range strings.Fields(line) {
				if k, v, found := strings.Cut(field, "="); found {
					values[k] = v
				}
			}
		}
	}

	if many := s.ingestor().PutValues(values); many != nil {
		s.writeError(w, r, many)
		return
	}
	standardHeaders(w, nil)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "<success/>")
}

// validateSeq checks seq (a "from", "to", or "at" query value) against the
// conformance window [firstSeq-1, nextSeq]: one position of slack on each
// side of the buffer's strict [firstSeq, nextSeq) retention range, so a
// client asking for exactly the boundary is clamped to the nearest
// retained sequence rather than rejected, per §9's resolved Open Question
// that values genuinely outside that window always error uniformly (the
// teacher's original clamps some paths and errors others; this module
// errors uniformly beyond the one-position slack).
func (s *Server) validateSeq(name string, seq uint64) (uint64, *errs.Many) {
	first := s.buf.FirstSeq()
	next := s.buf.NextSeq()
	lo := first
	if first > 0 {
		lo = first - 1
	}
	if seq < lo || seq > next {
		return 0, errs.OutOfRangeError(name, int64(seq), int64(lo), int64(next))
	}
	if seq < first {
		return first, nil
	}
	if seq >= next && next > first {
		return next - 1, nil
	}
	return seq, nil
}

func remoteHost(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}

// handleAssetList serves GET /asset(s) and GET /{device}/asset(s).
func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request, vals router.Values) {
	filter := assets.ListFilter{
		Type:           vals.String("type"),
		IncludeRemoved: vals.Bool("removed"),
		Count:          int(vals.Int64("count")),
	}
	if device := r.PathValue("device"); device != "" {
		dev, ok := s.currentTree().Device(device)
		if !ok {
			s.writeError(w, r, errs.NoDeviceError(device))
			return
		}
		filter.DeviceUUID = dev.UUID
	}
	s.writeAssetsDocument(w, r, s.assets.List(filter))
}

// handleAssetGet serves GET /asset/{assetIds} and /assets/{assetIds}: a
// comma-separated list of ids, any one of which may be missing.
func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request, _ router.Values) {
	ids := router.SplitCSV(r.PathValue("assetIds"))
	found, missing := s.assets.GetMany(ids)
	if len(missing) > 0 {
		s.writeError(w, r, errs.AssetsNotFoundError(missing))
		return
	}
	s.writeAssetsDocument(w, r, found)
}

// handleAssetPut implements PUT/POST /asset/{assetId}: upsert with an
// explicit id.
func (s *Server) handleAssetPut(w http.ResponseWriter, r *http.Request, vals router.Values) {
	s.upsertAsset(w, r, vals, r.PathValue("assetId"))
}

// handleAssetPutNoID implements PUT/POST /asset without a path id: the
// agent assigns one.
func (s *Server) handleAssetPutNoID(w http.ResponseWriter, r *http.Request, vals router.Values) {
	s.upsertAsset(w, r, vals, s.newAssetID())
}

func (s *Server) upsertAsset(w http.ResponseWriter, r *http.Request, vals router.Values, id string) {
	if !s.cfg.PutAllowedFrom(remoteHost(r)) {
		s.writeError(w, r, errs.New(errs.Unauthorized, "'"+remoteHost(r)+"' is not an allowed source"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, errs.New(errs.InvalidRequest, err.Error()))
		return
	}

	deviceUUID := vals.String("device")
	if deviceUUID != "" {
		if dev, ok := s.currentTree().Device(deviceUUID); ok {
			deviceUUID = dev.UUID
		}
	}

	s.assets.Upsert(&assets.Asset{
		ID:         id,
		Type:       vals.String("type"),
		DeviceUUID: deviceUUID,
		Timestamp:  time.Now(),
		Body:       string(body),
	})

	standardHeaders(w, nil)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "<success assetId=\""+id+"\"/>")
}

// handleAssetDelete implements DELETE /asset/{assetId}.
func (s *Server) handleAssetDelete(w http.ResponseWriter, r *http.Request, _ router.Values) {
	id := r.PathValue("assetId")
	if !s.assets.Remove(id) {
		s.writeError(w, r, errs.AssetsNotFoundError([]string{id}))
		return
	}
	standardHeaders(w, nil)
	w.WriteHeader(http.StatusOK)
}

// handleAssetDeleteMany implements DELETE /asset?assetIds=a,b,c.
func (s *Server) handleAssetDeleteMany(w http.ResponseWriter, r *http.Request, vals router.Values) {
	ids := router.SplitCSV(vals.String("assetIds"))
	var missing []string
	for _, id := range ids {
		if !s.assets.Remove(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		s.writeError(w, r, errs.AssetsNotFoundError(missing))
		return
	}
	standardHeaders(w, nil)
	w.WriteHeader(http.StatusOK)
}

// handleFile serves the static files (schemas, stylesheets, the landing
// page) registered in the file cache, falling through to gzip when the
// client accepts it.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, _ router.Values) {
	if s.files == nil {
		http.NotFound(w, r)
		return
	}
	urlPath := r.URL.Path

	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		if data, ctype, modTime, err := s.files.OpenGzip(urlPath); err == nil {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Type", ctype)
			http.ServeContent(w, r, urlPath, modTime, strings.NewReader(string(data)))
			return
		}
	}

	data, ctype, modTime, err := s.files.Open(urlPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ctype)
	http.ServeContent(w, r, urlPath, modTime, strings.NewReader(string(data)))
}

func (s *Server) writeStreamsDocument(w http.ResponseWriter, r *http.Request, tree *model.Tree, cp *buffer.Checkpoint) {
	standardHeaders(w, nil)
	f := negotiate(r, jsonVersionOf(s.cfg))
	h := s.header(cp)

	var body []byte
	var err error
	switch {
	case f == formatXML:
		body, err = printer.PrintStreamsXML(tree, h, cp, printer.XMLOptions{Stylesheet: s.cfg.Stylesheet})
	case f == formatJSONv2:
		body, err = printer.PrintStreamsJSONv2(tree, h, cp)
	default:
		body, err = printer.PrintStreamsJSONv1(tree, h, cp)
	}
	if err != nil {
		s.writeError(w, r, errs.New(errs.InternalError, err.Error()))
		return
	}
	w.Header().Set("Content-Type", f.contentType())
	w.Write(body)
}

func (s *Server) writeAssetsDocument(w http.ResponseWriter, r *http.Request, list []*assets.Asset) {
	standardHeaders(w, nil)
	f := negotiate(r, jsonVersionOf(s.cfg))
	h := s.header(nil)

	var body []byte
	var err error
	if f == formatXML {
		body, err = printer.PrintAssetsXML(h, list)
	} else {
		body, err = printer.PrintAssetsJSON(h, list)
	}
	if err != nil {
		s.writeError(w, r, errs.New(errs.InternalError, err.Error()))
		return
	}
	w.Header().Set("Content-Type", f.contentType())
	w.Write(body)
}
