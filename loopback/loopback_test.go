package loopback_test

import (
	"testing"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/loopback"
	"github.com/mtconnect-go/agentcore/model"
)

func buildIngestor() (*loopback.Ingestor, *model.DataItem, *model.DataItem) {
	dev := &model.Device{Component: model.Component{ID: "d1", Name: "Mill", UUID: "u1"}}
	tree := model.NewTree([]*model.Device{dev})
	scalar := &model.DataItem{ID: "di1", Name: "Xpos", Category: model.CategorySample, ComponentID: "d1"}
	cond := &model.DataItem{ID: "di2", Name: "Xfault", Category: model.CategoryCondition, ComponentID: "d1"}
	tree.AddDataItem(scalar, dev)
	tree.AddDataItem(cond, dev)

	buf := buffer.New(100, 10)
	return &loopback.Ingestor{Buf: buf, Tree: tree}, scalar, cond
}

func TestPutValuesScalar(t *testing.T) {
	ing, scalar, _ := buildIngestor()
	if err := ing.PutValues(map[string]string{"Xpos": "12.3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp := ing.Buf.Latest(nil)
	e, ok := cp.Get(scalar.ID)
	if !ok || e.Observation.Scalar != "12.3" {
		t.Fatalf("expected scalar 12.3, got %+v", e)
	}
}

func TestPutValuesCondition(t *testing.T) {
	ing, _, cond := buildIngestor()
	if err := ing.PutValues(map[string]string{"Xfault": "FAULT|404|1|HIGH|overtemp"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp := ing.Buf.Latest(nil)
	e, ok := cp.Get(cond.ID)
	if !ok || len(e.Condition.Active) != 1 || e.Condition.Active[0].NativeCode != "404" {
		t.Fatalf("expected one active fault 404, got %+v", e)
	}
}

func TestPutValuesUnknownNameAggregates(t *testing.T) {
	ing, _, _ := buildIngestor()
	err := ing.PutValues(map[string]string{"Bogus": "1", "AlsoBogus": "2"})
	if err == nil || len(err.Errors) != 2 {
		t.Fatalf("expected 2 aggregated errors, got %v", err)
	}
}

func TestPutValuesUnavailable(t *testing.T) {
	ing, scalar, _ := buildIngestor()
	if err := ing.PutValues(map[string]string{"Xpos": "UNAVAILABLE"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp := ing.Buf.Latest(nil)
	e, ok := cp.Get(scalar.ID)
	if !ok || !e.Observation.Unavailable {
		t.Fatalf("expected unavailable observation, got %+v", e)
	}
}
