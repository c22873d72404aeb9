// Package observation defines the immutable value objects the buffer
// stores and the serializers render: Observation (a tagged sum over
// scalar/vector/time-series/data-set/table/condition payloads) and the
// condition active-fault-list state machine.
//
// Observation is implemented as one struct with a Kind tag and
// kind-specific fields rather than an interface/class hierarchy —
// serializers dispatch on Kind with a type switch-free field read.
package observation

import (
	"math"
	"strconv"
	"time"

	"github.com/mtconnect-go/agentcore/model"
)

// Kind tags the shape of an Observation's payload.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindTimeSeries
	KindDataSet
	KindTable
	KindCondition
)

// Level is the three-valued state of a condition reading, plus the
// UNAVAILABLE sentinel.
type Level string

const (
	LevelNormal      Level = "NORMAL"
	LevelWarning     Level = "WARNING"
	LevelFault       Level = "FAULT"
	LevelUnavailable Level = "UNAVAILABLE"
)

// ConditionValue is one fault-list entry or a bare Normal/Unavailable
// reading: a tuple of level, native code, native severity, qualifier,
// and message.
type ConditionValue struct {
	Level           Level
	NativeCode      string
	NativeSeverity  string
	Qualifier       string
	Message         string
}

// DataSetEntry is one key/value(/removed) pair of a DATA_SET or TABLE
// observation. Table rows nest a set of DataSetEntry under Row.
type DataSetEntry struct {
	Key     string
	Value   string
	Removed bool
	Row     []DataSetEntry // non-nil for TABLE rows
}

// Observation is one immutable fact reported by a data item. Identity is
// Seq; two Observations with the same Seq are the same fact.
type Observation struct {
	DataItem  *model.DataItem
	Seq       uint64
	Timestamp time.Time
	Category  model.Category
	Kind      Kind

	// KindScalar
	Scalar string // string form; numeric data items still carry the
	// original textual representation so NaN/Inf/UNAVAILABLE survive.

	// KindVector
	Vector []float64

	// KindTimeSeries
	SampleCount int
	SampleRate  float64
	Series      []float64

	// KindDataSet / KindTable
	Entries []DataSetEntry

	// KindCondition — a single reading as received; the buffer's
	// checkpoint folds a sequence of these into an active fault list
	// (see ConditionState in condition.go).
	Condition ConditionValue

	// Unavailable marks a reset-to-UNAVAILABLE observation, applicable
	// to any Kind.
	Unavailable bool
}

// IsCondition reports whether this observation carries a condition payload.
func (o *Observation) IsCondition() bool { return o.Kind == KindCondition }

// FormatDouble renders d using the shortest round-trip form, with the
// NaN/Infinity sentinels the MTConnect wire format requires. Serializers
// call this for any numeric field instead of fmt's default formatting,
// which does not special-case NaN/Inf the way the wire format does.
func FormatDouble(d float64) string {
	switch {
	case math.IsNaN(d):
		return "NaN"
	case math.IsInf(d, 1):
		return "Infinity"
	case math.IsInf(d, -1):
		return "-Infinity"
	default:
		// 'g' with precision -1 is Go's shortest round-trip form.
		return strconv.FormatFloat(d, 'g', -1, 64)
	}
}
