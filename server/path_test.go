package server

import (
	"testing"

	"github.com/mtconnect-go/agentcore/model"
)

func buildPathTestTree() *model.Tree {
	dev := &model.Device{Component: model.Component{ID: "d1", Name: "Mill", UUID: "uuid-1"}}
	axes := &model.Component{ID: "c1", Name: "Axes", Type: "Axes", ParentID: "d1"}
	xpos := &model.DataItem{ID: "di1", Name: "Xpos", Type: "POSITION", Category: model.CategorySample, ComponentID: "c1"}
	ypos := &model.DataItem{ID: "di2", Name: "Ypos", Type: "POSITION", Category: model.CategorySample, ComponentID: "c1"}
	tree := model.NewTree([]*model.Device{dev})
	tree.AddComponent(axes)
	tree.AddDataItem(xpos, dev)
	tree.AddDataItem(ypos, dev)
	return tree
}

func TestResolveFilterEmptyPathReturnsAllForDevice(t *testing.T) {
	tree := buildPathTestTree()
	filter, err := resolveFilter(tree, "Mill", "")
	if err != nil {
		t.Fatalf("resolveFilter: %v", err)
	}
	if len(filter) != 2 {
		t.Fatalf("expected both data items, got %d", len(filter))
	}
}

func TestResolveFilterByName(t *testing.T) {
	tree := buildPathTestTree()
	filter, err := resolveFilter(tree, "", "//DataItem[@name='Xpos']")
	if err != nil {
		t.Fatalf("resolveFilter: %v", err)
	}
	if _, ok := filter["di1"]; !ok || len(filter) != 1 {
		t.Fatalf("expected exactly di1 in filter, got %v", filter)
	}
}

func TestResolveFilterUnparseablePathIsInvalidXPath(t *testing.T) {
	tree := buildPathTestTree()
	_, err := resolveFilter(tree, "", "not a valid expression")
	if err == nil {
		t.Fatal("expected an error for an unparseable path expression")
	}
}

func TestResolveFilterNoMatchIsInvalidXPath(t *testing.T) {
	tree := buildPathTestTree()
	_, err := resolveFilter(tree, "", "//DataItem[@name='Nope']")
	if err == nil {
		t.Fatal("expected an error when no data item matches")
	}
}
