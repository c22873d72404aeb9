package server

import (
	"net/http"
	"strings"
)

// format is the negotiated output dialect for one request.
type format int

const (
	formatXML format = iota
	formatJSONv1
	formatJSONv2
)

func (f format) contentType() string {
	if f == formatXML {
		return "application/xml"
	}
	return "application/json"
}

// negotiate picks a response format: an explicit "format" query parameter
// wins, then the first recognized suffix in Accept, then XML. jsonVersion
// is the configured default JSON dialect (1 or 2) used whenever JSON is
// selected without the query or header distinguishing v1 from v2.
func negotiate(r *http.Request, jsonVersion int) format {
	if v := r.URL.Query().Get("format"); v != "" {
		if f, ok := formatFor(v, jsonVersion); ok {
			return f
		}
	}
	accept := r.Header.Get("Accept")
	j, x := strings.Index(accept, "json"), strings.Index(accept, "xml")
	if j >= 0 && (x < 0 || j < x) {
		if f, ok := formatFor("json", jsonVersion); ok {
			return f
		}
	}
	return formatXML
}

func formatFor(v string, jsonVersion int) (format, bool) {
	switch strings.ToLower(v) {
	case "xml":
		return formatXML, true
	case "json":
		if jsonVersion == 2 {
			return formatJSONv2, true
		}
		return formatJSONv1, true
	case "jsonv1":
		return formatJSONv1, true
	case "jsonv2":
		return formatJSONv2, true
	default:
		return 0, false
	}
}

// standardHeaders sets the headers the agent always sends, per the wire
// contract: no caching, and an identifying Server token.
func standardHeaders(w http.ResponseWriter, extra map[string]string) {
	h := w.Header()
	h.Set("Server", "MTConnectAgent")
	h.Set("Cache-Control", "no-store, max-age=0")
	h.Set("Expires", "-1")
	for k, v := range extra {
		h.Set(k, v)
	}
}
