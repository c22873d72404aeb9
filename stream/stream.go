// Package stream implements the long-poll / multipart streaming engine
// that turns a buffer range walk into a paced sequence of chunks: wait
// for new data (edge-triggered on the buffer's notify channel), emit a
// chunk, pace the next emission by interval, and fall back to an empty
// heartbeat chunk if nothing arrives before the heartbeat deadline.
package stream

import (
	"context"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/observation"
)

const (
	// maxChunk bounds a single GetRange call; it is not a protocol limit,
	// just large enough that one chunk drains everything currently
	// pending.
	maxChunk = 1 << 30

	// DefaultHeartbeat is used when a caller leaves Heartbeat unset.
	DefaultHeartbeat = 10 * time.Second
)

// Chunk is one unit of output from Run: either a batch of observations or
// an empty heartbeat keep-alive.
type Chunk struct {
	Observations []*observation.Observation
	NextSeq      uint64
	Heartbeat    bool
}

// Stream paces delivery of a buffer's observations to one subscriber,
// starting at From and optionally restricted to Filter.
type Stream struct {
	Buf       *buffer.Buffer
	Filter    map[string]struct{}
	From      uint64
	Interval  time.Duration // minimum spacing between non-heartbeat chunks
	Heartbeat time.Duration // keep-alive period when no data arrives
}

// Run calls emit for every chunk until ctx is cancelled or emit returns an
// error. It blocks between chunks; the caller is expected to run it in
// its own goroutine (or as the body of a long-lived HTTP handler).
func (s *Stream) Run(ctx context.Context, emit func(Chunk) error) error {
	heartbeat := s.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	cursor := s.From
	hbTimer := time.NewTimer(heartbeat)
	defer hbTimer.Stop()

	for {
		obs, endSeq, _ := s.Buf.GetRange(s.Filter, maxChunk, &cursor, nil)
		if len(obs) > 0 {
			if err := emit(Chunk{Observations: obs, NextSeq: endSeq}); err != nil {
				return err
			}
			cursor = endSeq
			resetTimer(hbTimer, heartbeat)

			if s.Interval > 0 {
				select {
				case <-time.After(s.Interval):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		notify := s.Buf.Notify()
		select {
		case <-notify:
			continue
		case <-hbTimer.C:
			if err := emit(Chunk{Heartbeat: true, NextSeq: cursor}); err != nil {
				return err
			}
			resetTimer(hbTimer, heartbeat)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// Current answers a single, non-streaming snapshot request: the current
// checkpoint plus the sequence number a subsequent stream should resume
// from.
func Current(buf *buffer.Buffer, filter map[string]struct{}) (*buffer.Checkpoint, uint64) {
	return buf.Latest(filter), buf.NextSeq()
}
