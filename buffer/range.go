package buffer

import "github.com/mtconnect-go/agentcore/observation"

// GetRange walks the ring and returns up to |count| observations matching
// filter (nil filter matches everything).
//
// count > 0 walks forward starting at from (default firstSeq when from is
// nil), stopping at to (default nextSeq when to is nil) or once count
// matches have been collected. count < 0 walks backward from top
// (default nextSeq when from is nil) toward firstSeq, collecting up to
// -count matches and returning them in ascending sequence order.
//
// endSeq is the cursor position the walk stopped at — pass it back as
// the next call's from to resume. endOfBuffer reports whether the walk
// reached the far boundary (nextSeq going forward, firstSeq going
// backward) without hitting the count limit.
func (b *Buffer) GetRange(filter map[string]struct{}, count int, from, to *uint64) (obs []*observation.Observation, endSeq uint64, endOfBuffer bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if count == 0 {
		cursor := derefOr(from, b.firstSeq)
		return nil, cursor, cursor >= b.nextSeq
	}
	if count > 0 {
		return b.rangeForward(filter, count, from, to)
	}
	return b.rangeBackward(filter, -count, from)
}

func (b *Buffer) rangeForward(filter map[string]struct{}, count int, from, to *uint64) ([]*observation.Observation, uint64, bool) {
	cursor := derefOr(from, b.firstSeq)
	if cursor < b.firstSeq {
		cursor = b.firstSeq
	}
	end := derefOr(to, b.nextSeq)
	if end > b.nextSeq {
		end = b.nextSeq
	}

	var out []*observation.Observation
	for cursor < end && len(out) < count {
		if o := b.at(cursor); o != nil && matches(filter, o.DataItem.ID) {
			out = append(out, o)
		}
		cursor++
	}
	return out, cursor, cursor >= b.nextSeq
}

func (b *Buffer) rangeBackward(filter map[string]struct{}, n int, from *uint64) ([]*observation.Observation, uint64, bool) {
	top := derefOr(from, b.nextSeq)
	if top > b.nextSeq {
		top = b.nextSeq
	}

	var rev []*observation.Observation
	cursor := top
	for cursor > b.firstSeq && len(rev) < n {
		cursor--
		if o := b.at(cursor); o != nil && matches(filter, o.DataItem.ID) {
			rev = append(rev, o)
		}
	}

	out := make([]*observation.Observation, len(rev))
	for i, o := range rev {
		out[len(rev)-1-i] = o
	}
	return out, cursor, cursor <= b.firstSeq
}

// at returns the ring entry at seq if it's still the live occupant of its
// slot (guards against stale reads after the slot has wrapped around).
func (b *Buffer) at(seq uint64) *observation.Observation {
	o := b.ring[seq%uint64(b.capacity)]
	if o == nil || o.Seq != seq {
		return nil
	}
	return o
}

func matches(filter map[string]struct{}, dataItemID string) bool {
	if filter == nil {
		return true
	}
	_, ok := filter[dataItemID]
	return ok
}

func derefOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}
