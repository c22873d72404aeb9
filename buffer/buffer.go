// Package buffer implements the fixed-capacity circular observation
// buffer: a monotonically increasing sequence space, a ring that holds
// the most recent capacity observations, and periodic checkpoints that
// let the oldest-retained checkpoint (and any arbitrary in-range
// checkpoint) be reconstructed without replaying the whole ring.
//
// The sequence/notify/RWMutex shape follows the same discipline as an
// append-only event log: writers take the exclusive lock only long
// enough to append and fold the new entry into the running checkpoint;
// readers take the shared lock, copy what they need, and release before
// doing any serialization work.
package buffer

import (
	"errors"
	"sync"

	"github.com/mtconnect-go/agentcore/observation"
)

// ErrOutOfRange is returned by Get and CheckpointAt when the requested
// sequence number has already been evicted or has not happened yet.
// Handlers translate this into the OUT_OF_RANGE wire error.
var ErrOutOfRange = errors.New("buffer: sequence out of range")

const defaultCheckpointFreq = 200

// Buffer is a fixed-capacity ring of observations plus the checkpoint
// machinery needed to answer "what was every data item's state as of
// sequence N" without O(capacity) work on every read.
type Buffer struct {
	mu sync.RWMutex

	capacity       int
	checkpointFreq uint64

	firstSeq uint64
	nextSeq  uint64
	ring     []*observation.Observation

	latest             *Checkpoint
	firstSeqCheckpoint *Checkpoint

	periodic      map[uint64]*Checkpoint
	periodicOrder []uint64 // ascending by construction (seq only increases)

	notify chan struct{}
}

// New builds an empty buffer with the given ring capacity. checkpointFreq
// of 0 falls back to a sensible default; periodic checkpoints are taken
// every checkpointFreq-th sequence number.
func New(capacity int, checkpointFreq uint64) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	if checkpointFreq == 0 {
		checkpointFreq = defaultCheckpointFreq
	}
	return &Buffer{
		capacity:           capacity,
		checkpointFreq:     checkpointFreq,
		ring:               make([]*observation.Observation, capacity),
		latest:             newCheckpoint(),
		firstSeqCheckpoint: newCheckpoint(),
		periodic:           make(map[uint64]*Checkpoint),
		notify:             make(chan struct{}),
	}
}

// Capacity returns the ring's fixed size.
func (b *Buffer) Capacity() int { return b.capacity }

// FirstSeq returns the oldest sequence number still retained.
func (b *Buffer) FirstSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.firstSeq
}

// NextSeq returns the sequence number the next Add will receive.
func (b *Buffer) NextSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Notify returns a channel that is closed the next time Add runs. Callers
// re-fetch Notify after it fires to wait for the next write — the
// channel is replaced, never reused, so a closed channel is never
// observed twice.
func (b *Buffer) Notify() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// Add assigns the next sequence number to o, folds it into the running
// checkpoint, evicts the oldest entry if the ring is full, and wakes any
// waiters blocked on Notify. It returns the assigned sequence number.
func (b *Buffer) Add(o *observation.Observation) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.nextSeq
	o.Seq = seq
	b.nextSeq++
	idx := seq % uint64(b.capacity)
	b.ring[idx] = o

	b.latest.apply(o)

	if seq%b.checkpointFreq == 0 {
		b.periodic[seq] = b.latest.clone()
		b.periodicOrder = append(b.periodicOrder, seq)
	}

	if seq == 0 {
		b.firstSeqCheckpoint = b.latest.clone()
	}

	if b.nextSeq-b.firstSeq > uint64(b.capacity) {
		b.firstSeq++
		b.recomputeFirstSeqCheckpoint()
		b.prunePeriodic()
	}

	old := b.notify
	b.notify = make(chan struct{})
	close(old)

	return seq
}

// Get returns the observation at seq, or ErrOutOfRange if it has been
// evicted or has not happened yet.
func (b *Buffer) Get(seq uint64) (*observation.Observation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if seq < b.firstSeq || seq >= b.nextSeq {
		return nil, ErrOutOfRange
	}
	o := b.ring[seq%uint64(b.capacity)]
	if o == nil || o.Seq != seq {
		return nil, ErrOutOfRange
	}
	return o, nil
}

// Latest returns a checkpoint of the current state, restricted to filter
// (nil filter means every data item).
func (b *Buffer) Latest(filter map[string]struct{}) *Checkpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest.cloneFiltered(filter)
}

// CheckpointAt reconstructs the checkpoint as of sequence seq: every data
// item's state reflects observations up to and including seq, and no
// later ones. It starts from the nearest periodic checkpoint at or below
// seq and replays forward, so the work is bounded by checkpointFreq
// rather than the whole ring.
func (b *Buffer) CheckpointAt(seq uint64, filter map[string]struct{}) (*Checkpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if seq < b.firstSeq || seq >= b.nextSeq {
		return nil, ErrOutOfRange
	}
	if seq == b.firstSeq {
		return b.firstSeqCheckpoint.cloneFiltered(filter), nil
	}

	cp, start := b.replayBase(seq)
	for s := start; s <= seq; s++ {
		o := b.ring[s%uint64(b.capacity)]
		if o != nil && o.Seq == s {
			cp.apply(o)
		}
	}
	return cp.cloneFiltered(filter), nil
}

// replayBase picks the starting checkpoint and first sequence to replay
// from in order to reconstruct state as of target. Caller must hold the
// read or write lock.
func (b *Buffer) replayBase(target uint64) (*Checkpoint, uint64) {
	base, baseSeq, found := b.nearestPeriodicAtOrBelow(target)
	if found && baseSeq >= b.firstSeq {
		return base.clone(), baseSeq + 1
	}
	return b.firstSeqCheckpoint.clone(), b.firstSeq + 1
}

func (b *Buffer) nearestPeriodicAtOrBelow(target uint64) (*Checkpoint, uint64, bool) {
	var bestSeq uint64
	var best *Checkpoint
	found := false
	for _, seq := range b.periodicOrder {
		if seq > target {
			break
		}
		bestSeq, best, found = seq, b.periodic[seq], true
	}
	return best, bestSeq, found
}

// recomputeFirstSeqCheckpoint rebuilds firstSeqCheckpoint after firstSeq
// has just advanced by one. The old checkpoint holds the state as of
// firstSeq-1, so replaying the one observation at firstSeq onto it gives
// the state as of firstSeq; a periodic checkpoint taken at firstSeq is
// used as-is. Caller must hold the write lock.
func (b *Buffer) recomputeFirstSeqCheckpoint() {
	target := b.firstSeq
	if base, ok := b.periodic[target]; ok {
		b.firstSeqCheckpoint = base.clone()
		return
	}
	if o := b.at(target); o != nil {
		b.firstSeqCheckpoint.apply(o)
	}
}

// prunePeriodic drops periodic checkpoints older than the new firstSeq:
// once firstSeqCheckpoint has absorbed them, they can never again be the
// nearest-at-or-below base for a valid (in-range) CheckpointAt call.
func (b *Buffer) prunePeriodic() {
	i := 0
	for i < len(b.periodicOrder) && b.periodicOrder[i] < b.firstSeq {
		delete(b.periodic, b.periodicOrder[i])
		i++
	}
	b.periodicOrder = b.periodicOrder[i:]
}
