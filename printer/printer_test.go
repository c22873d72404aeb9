package printer_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/errs"
	"github.com/mtconnect-go/agentcore/model"
	"github.com/mtconnect-go/agentcore/observation"
	"github.com/mtconnect-go/agentcore/printer"
)

func buildTree() (*model.Tree, *model.DataItem) {
	dev := &model.Device{Component: model.Component{ID: "d1", Name: "Mill", UUID: "uuid-1"}}
	axes := &model.Component{ID: "c1", Name: "Axes", Type: "Axes", ParentID: "d1"}
	di := &model.DataItem{ID: "di1", Name: "Xpos", Category: model.CategorySample, Type: "POSITION", ComponentID: "c1"}
	tree := model.NewTree([]*model.Device{dev})
	tree.AddComponent(axes)
	tree.AddDataItem(di, dev)
	return tree, di
}

func buildCheckpoint(di *model.DataItem) *buffer.Checkpoint {
	b := buffer.New(10, 2)
	b.Add(&observation.Observation{DataItem: di, Timestamp: time.Now(), Category: di.Category, Kind: observation.KindScalar, Scalar: "12.5"})
	return b.Latest(nil)
}

func TestPrintStreamsXMLContainsObservation(t *testing.T) {
	tree, di := buildTree()
	cp := buildCheckpoint(di)
	h := printer.Header{CreationTime: time.Now(), Sender: "agent1", SchemaVersion: "2.3"}

	out, err := printer.PrintStreamsXML(tree, h, cp, printer.XMLOptions{})
	if err != nil {
		t.Fatalf("PrintStreamsXML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<Position") || !strings.Contains(s, "12.5") {
		t.Fatalf("expected a Position element with value 12.5, got: %s", s)
	}
	if !strings.Contains(s, `name="Mill"`) {
		t.Fatalf("expected device name in DeviceStream, got: %s", s)
	}
}

func TestPrintStreamsJSONv1SingleKeyObjects(t *testing.T) {
	tree, di := buildTree()
	cp := buildCheckpoint(di)
	h := printer.Header{CreationTime: time.Now(), SchemaVersion: "2.3"}

	out, err := printer.PrintStreamsJSONv1(tree, h, cp)
	if err != nil {
		t.Fatalf("PrintStreamsJSONv1: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := decoded["MTConnectStreams"]; !ok {
		t.Fatalf("missing root key, got %v", decoded)
	}
}

func TestPrintErrorXMLPre26UsesErrorElement(t *testing.T) {
	many := errs.NoDeviceError("Bogus")
	h := printer.Header{CreationTime: time.Now(), SchemaVersion: "1.7"}
	out, err := printer.PrintErrorXML(h, many, printer.ErrorSchemaPre26)
	if err != nil {
		t.Fatalf("PrintErrorXML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `errorCode="NO_DEVICE"`) {
		t.Fatalf("expected errorCode attribute, got: %s", s)
	}
}

func TestPrintErrorXMLV26UsesPerCodeElement(t *testing.T) {
	many := errs.NoDeviceError("Bogus")
	h := printer.Header{CreationTime: time.Now(), SchemaVersion: "2.3"}
	out, err := printer.PrintErrorXML(h, many, printer.ErrorSchemaV26Plus)
	if err != nil {
		t.Fatalf("PrintErrorXML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<NoDevice") {
		t.Fatalf("expected a NoDevice element, got: %s", s)
	}
}
