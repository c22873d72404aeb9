// Package loopback turns an adapter-style PUT/POST request — query
// parameters or an SHDR-style body line of key=value pairs — into
// observations folded straight into the buffer, the same ingestion path
// a TCP adapter would use, reachable over HTTP for devices that can only
// speak REST.
package loopback

import (
	"strings"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

// Ingestor folds key/value submissions into a buffer using a tree to
// resolve data item names.
type Ingestor struct {
	Buf  *buffer.Buffer
	Tree *model.Tree
}

// PutValues submits one observation per entry in values, keyed by data
// item name. A pipe-delimited value ("FAULT|101|1|HIGH|overtemp") is
// parsed as a condition tuple when the named data item is a condition;
// a DATA_SET or TABLE data item's value is parsed into entries; otherwise
// the whole string is the scalar value. Unknown names and
// malformed condition tuples are collected into one aggregated error
// rather than failing the whole submission on the first bad key.
func (ing *Ingestor) PutValues(values map[string]string) *errs.Many {
	var many *errs.Many
	now := time.Now()

	for name, raw := range values {
		di, ok := ing.Tree.DataItemByName(name)
		if !ok {
			many = appendErr(many, errs.New(errs.InvalidRequest, "Unknown data item '"+name+"'"))
			continue
		}
		o, err := buildObservation(di, raw, now)
		if err != nil {
			many = appendErr(many, errs.New(errs.InvalidRequest, "'"+raw+"' is not a valid value for '"+name+"': "+err.Error()))
			continue
		}
		ing.Buf.Add(o)
	}
	return many
}

func buildObservation(di *model.DataItem, raw string, ts time.Time) (*observation.Observation, error) {
	o := &observation.Observation{DataItem: di, Timestamp: ts, Category: di.Category}

	if raw == "UNAVAILABLE" {
		o.Unavailable = true
		o.Kind = kindFor(di)
		return o, nil
	}

	if di.IsCondition() {
		o.Kind = observation.KindCondition
		cv, err := parseCondition(raw)
		if err != nil {
			return nil, err
		}
		o.Condition = cv
		return o, nil
	}

	switch di.Representation {
	case model.RepresentationDataSet, model.RepresentationTable:
		o.Kind = observation.KindDataSet
		if di.Representation == model.RepresentationTable {
			o.Kind = observation.KindTable
		}
		o.Entries = parseDataSet(raw)
	default:
		o.Kind = observation.KindScalar
		o.Scalar = raw
	}
	return o, nil
}

func kindFor(di *model.DataItem) observation.Kind {
	switch {
	case di.IsCondition():
		return observation.KindCondition
	case di.Representation == model.RepresentationDataSet:
		return observation.KindDataSet
	case di.Representation == model.RepresentationTable:
		return observation.KindTable
	default:
		return observation.KindScalar
	}
}

// parseCondition parses a pipe-delimited SHDR-style condition tuple:
// level|nativeCode|nativeSeverity|qualifier|message. Trailing fields may
// be omitted.
func parseCondition(raw string) (observation.ConditionValue, error) {
	parts := strings.Split(raw, "|")
	cv := observation.ConditionValue{Level: observation.Level(strings.ToUpper(strings.TrimSpace(parts[0])))}
	switch cv.Level {
	case observation.LevelNormal, observation.LevelWarning, observation.LevelFault, observation.LevelUnavailable:
	default:
		return cv, errInvalidLevel(parts[0])
	}
	if len(parts) > 1 {
		cv.NativeCode = parts[1]
	}
	if len(parts) > 2 {
		cv.NativeSeverity = parts[2]
	}
	if len(parts) > 3 {
		cv.Qualifier = parts[3]
	}
	if len(parts) > 4 {
		cv.Message = strings.Join(parts[4:], "|")
	}
	return cv, nil
}

type errInvalidLevel string

func (e errInvalidLevel) Error() string {
	return "unrecognized condition level '" + string(e) + "'"
}

// parseDataSet parses "key=value key2=value2 key3" entries; a bare key
// with no '=' removes that entry (the SHDR data-set removal convention).
func parseDataSet(raw string) []observation.DataSetEntry {
	fields := strings.Fields(raw)
	out := make([]observation.DataSetEntry, 0, len(fields))
	for _, f := range fields {
		if eq := strings.IndexByte(f, '='); eq >= 0 {
			out = append(out, observation.DataSetEntry{Key: f[:eq], Value: strings.Trim(f[eq+1:], `"`)})
		} else {
			out = append(out, observation.DataSetEntry{Key: f, Removed: true})
		}
	}
	return out
}

func appendErr(m *errs.Many, add *errs.Many) *errs.Many {
	if m == nil {
		return add
	}
	m.Errors = append(m.Errors, add.Errors...)
	return m
}
