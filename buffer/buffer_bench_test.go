package buffer_test

import (
	"testing"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
)

func BenchmarkAdd(b *testing.B) {
	buf := buffer.New(16384, 200)
	di := scalarDataItem("x")
	o := &observation.Observation{DataItem: di, Timestamp: time.Now(), Category: model.CategorySample, Kind: observation.KindScalar, Scalar: "1"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(o)
	}
}

func BenchmarkCheckpointAt(b *testing.B) {
	buf := buffer.New(16384, 200)
	di := scalarDataItem("x")
	var seqs []uint64
	for i := 0; i < 16384*4; i++ {
		seqs = append(seqs, buf.Add(scalarObs(di, "v")))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.CheckpointAt(seqs[len(seqs)-1], nil)
	}
}

func BenchmarkGetRangeForward(b *testing.B) {
	buf := buffer.New(16384, 200)
	di := scalarDataItem("x")
	for i := 0; i < 16384; i++ {
		buf.Add(scalarObs(di, "v"))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.GetRange(nil, 100, nil, nil)
	}
}
