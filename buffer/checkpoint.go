package buffer

import "github.com/mtconnect-go/agentcore/observation"

// Entry is one data item's state inside a Checkpoint: either the most
// recent observation (for SAMPLE/EVENT items) or the active fault list
// (for CONDITION items) — never both.
type Entry struct {
	Observation *observation.Observation
	Condition   *observation.ConditionState
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{Observation: e.Observation} // Observation is immutable, safe to share
	if e.Condition != nil {
		out.Condition = e.Condition.Clone()
	}
	return out
}

// Checkpoint maps DataItem id to its current Entry. It must be cloneable
// in O(entries) and filterable by a set of data-item ids.
type Checkpoint struct {
	entries map[string]*Entry
}

func newCheckpoint() *Checkpoint {
	return &Checkpoint{entries: make(map[string]*Entry)}
}

// Get returns the entry for a data item id, if present.
func (c *Checkpoint) Get(dataItemID string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.entries[dataItemID]
	return e, ok
}

// Range calls fn for every entry in the checkpoint. Iteration order is
// unspecified — callers that need stable ordering (serializers) sort
// separately by device, component, category, name, then seq.
func (c *Checkpoint) Range(fn func(dataItemID string, e *Entry)) {
	if c == nil {
		return
	}
	for id, e := range c.entries {
		fn(id, e)
	}
}

// Len returns the number of data items tracked.
func (c *Checkpoint) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// clone deep-copies every entry in O(entries).
func (c *Checkpoint) clone() *Checkpoint {
	out := newCheckpoint()
	if c == nil {
		return out
	}
	for id, e := range c.entries {
		out.entries[id] = e.clone()
	}
	return out
}

// cloneFiltered deep-copies only the entries whose id is in filter. A nil
// filter means "no filter" — every entry is copied. Filters are treated
// purely as id-sets, with no device-scoping.
func (c *Checkpoint) cloneFiltered(filter map[string]struct{}) *Checkpoint {
	out := newCheckpoint()
	if c == nil {
		return out
	}
	for id, e := range c.entries {
		if filter != nil {
			if _, ok := filter[id]; !ok {
				continue
			}
		}
		out.entries[id] = e.clone()
	}
	return out
}

// FromObservations builds a Checkpoint from a flat, seq-ordered slice of
// observations — the shape GetRange and a stream Chunk return — folding
// each one in with the same condition/fault-list semantics Add uses, so a
// sample response's range can be rendered with the same serializer as a
// current snapshot.
func FromObservations(obs []*observation.Observation) *Checkpoint {
	cp := newCheckpoint()
	for _, o := range obs {
		cp.apply(o)
	}
	return cp
}

// apply folds one new observation into the checkpoint in place: condition
// data items fold into their active fault list, everything else simply
// replaces the prior entry. Callers must hold a lock that serializes
// writers.
func (c *Checkpoint) apply(o *observation.Observation) {
	id := o.DataItem.ID
	if o.IsCondition() {
		e, ok := c.entries[id]
		if !ok || e.Condition == nil {
			e = &Entry{Condition: &observation.ConditionState{}}
			c.entries[id] = e
		}
		if o.Unavailable {
			e.Condition.Apply(observation.ConditionValue{Level: observation.LevelUnavailable})
		} else {
			e.Condition.Apply(o.Condition)
		}
		return
	}
	c.entries[id] = &Entry{Observation: o}
}
