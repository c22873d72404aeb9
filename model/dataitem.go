// Package model holds the device/component/data-item tree the core
// consumes but does not own. The device-XML loader, hot-reload watcher,
// and unit conversion live upstream of this package; model only defines
// the shapes the buffer, streaming engine, and serializers need to read.
//
// The tree is rebuilt, never mutated, on every config reload; in-flight
// observations keep direct *DataItem/*Component pointers into the Tree
// that produced them, so a Tree is shared-ownership, kept alive by
// whichever observation or request holds it last.
package model

// Category is the high-level kind of a data item's readings.
type Category string

const (
	CategorySample    Category = "SAMPLE"
	CategoryEvent     Category = "EVENT"
	CategoryCondition Category = "CONDITION"
)

// Representation describes the shape of values a data item reports.
type Representation string

const (
	RepresentationValue      Representation = "VALUE"
	RepresentationTimeSeries Representation = "TIME_SERIES"
	RepresentationDataSet    Representation = "DATA_SET"
	RepresentationTable      Representation = "TABLE"
)

// Converter scales and offsets a raw reported value: converted = raw*Scale + Offset.
type Converter struct {
	Scale  float64
	Offset float64
}

// Convert applies the converter to a raw value; a nil Converter is the identity.
func (c *Converter) Convert(raw float64) float64 {
	if c == nil {
		return raw
	}
	return raw*c.Scale + c.Offset
}

// FilterSpec describes adapter-side filtering hints. The core treats these
// as read-only metadata; filtering itself happens upstream in the
// pipeline, not here.
type FilterSpec struct {
	MinimumDelta float64
	Period       float64
}

// DataItem is a named, typed signal channel on a Component. It is an
// immutable value once built into a Tree.
type DataItem struct {
	ID             string
	Name           string
	Category       Category
	Type           string
	SubType        string
	Representation Representation
	NativeUnits    string
	Units          string
	Converter      *Converter
	Filter         *FilterSpec
	InitialValue   string
	ResetTrigger   string
	ComponentID    string // owning component

	// SampleRate, when set, is advertised for TIME_SERIES representation.
	SampleRate float64
}

// IsCondition reports whether this data item is a three-valued condition.
func (d *DataItem) IsCondition() bool {
	return d.Category == CategoryCondition
}
