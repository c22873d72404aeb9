package stream_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
	"github.com/mtconnect-go/agentcore/stream"
)

func newBuf() (*buffer.Buffer, *model.DataItem) {
	return buffer.New(1000, 50), &model.DataItem{ID: "x", Name: "x", Category: model.CategorySample}
}

func TestStreamDeliversNewObservations(t *testing.T) {
	buf, di := newBuf()
	s := &stream.Stream{Buf: buf, From: buf.NextSeq(), Heartbeat: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delivered int32
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(c stream.Chunk) error {
			if !c.Heartbeat {
				atomic.AddInt32(&delivered, int32(len(c.Observations)))
			}
			if atomic.LoadInt32(&delivered) >= 3 {
				close(done)
				return context.Canceled
			}
			return nil
		})
	}()

	for i := 0; i < 3; i++ {
		buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "v"})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not deliver observations in time")
	}
}

func TestStreamHeartbeatOnIdle(t *testing.T) {
	buf, _ := newBuf()
	s := &stream.Stream{Buf: buf, From: buf.NextSeq(), Heartbeat: 30 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hb := make(chan struct{}, 1)
	go s.Run(ctx, func(c stream.Chunk) error {
		if c.Heartbeat {
			select {
			case hb <- struct{}{}:
			default:
			}
		}
		return nil
	})

	select {
	case <-hb:
	case <-time.After(time.Second):
		t.Fatal("expected a heartbeat chunk while idle")
	}
}

func TestCurrentReturnsSnapshotAndSeq(t *testing.T) {
	buf, di := newBuf()
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "1"})
	buf.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "2"})

	cp, seq := stream.Current(buf, nil)
	if seq != buf.NextSeq() {
		t.Fatalf("expected seq %d, got %d", buf.NextSeq(), seq)
	}
	e, ok := cp.Get("x")
	if !ok || e.Observation.Scalar != "2" {
		t.Fatalf("expected latest value 2, got %+v", e)
	}
}
