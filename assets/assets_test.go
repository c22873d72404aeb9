package assets_test

import (
	"testing"
	"time"

	"github.com/mtconnect-go/agentcore/assets"
)

func TestUpsertAndGet(t *testing.T) {
	s := assets.NewStore(0)
	s.Upsert(&assets.Asset{ID: "a1", Type: "CuttingTool", Timestamp: time.Now()})
	a, ok := s.Get("a1")
	if !ok || a.Type != "CuttingTool" {
		t.Fatalf("expected to find a1, got %+v", a)
	}
}

func TestUpsertReplacesAndReordersToMostRecent(t *testing.T) {
	s := assets.NewStore(0)
	s.Upsert(&assets.Asset{ID: "a1", Type: "CuttingTool"})
	s.Upsert(&assets.Asset{ID: "a2", Type: "CuttingTool"})
	s.Upsert(&assets.Asset{ID: "a1", Type: "CuttingTool"}) // re-add moves to front

	list := s.List(assets.ListFilter{})
	if len(list) != 2 || list[0].ID != "a1" {
		t.Fatalf("expected a1 most recent after re-upsert, got %+v", list)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := assets.NewStore(2)
	s.Upsert(&assets.Asset{ID: "a1"})
	s.Upsert(&assets.Asset{ID: "a2"})
	s.Upsert(&assets.Asset{ID: "a3"})

	if _, ok := s.Get("a1"); ok {
		t.Fatal("expected a1 to be evicted")
	}
	if _, ok := s.Get("a3"); !ok {
		t.Fatal("expected a3 to still be present")
	}
}

func TestRemoveExcludesFromListByDefault(t *testing.T) {
	s := assets.NewStore(0)
	s.Upsert(&assets.Asset{ID: "a1", Type: "CuttingTool"})
	if !s.Remove("a1") {
		t.Fatal("expected Remove to succeed")
	}
	if len(s.List(assets.ListFilter{})) != 0 {
		t.Fatal("expected removed asset excluded from default List")
	}
	if len(s.List(assets.ListFilter{IncludeRemoved: true})) != 1 {
		t.Fatal("expected removed asset included when IncludeRemoved is set")
	}
	if _, ok := s.Get("a1"); !ok {
		t.Fatal("Get should still find a removed asset")
	}
}

func TestGetManyReportsMissing(t *testing.T) {
	s := assets.NewStore(0)
	s.Upsert(&assets.Asset{ID: "a1"})
	found, missing := s.GetMany([]string{"a1", "nope"})
	if len(found) != 1 || len(missing) != 1 || missing[0] != "nope" {
		t.Fatalf("unexpected result: found=%v missing=%v", found, missing)
	}
}

func TestCountByType(t *testing.T) {
	s := assets.NewStore(0)
	s.Upsert(&assets.Asset{ID: "a1", Type: "CuttingTool"})
	s.Upsert(&assets.Asset{ID: "a2", Type: "Pallet"})
	if s.Count("") != 2 {
		t.Fatalf("expected 2 total, got %d", s.Count(""))
	}
	if s.Count("CuttingTool") != 1 {
		t.Fatalf("expected 1 CuttingTool, got %d", s.Count("CuttingTool"))
	}
}
