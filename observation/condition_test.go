package observation_test

import (
	"testing"

	"github.com/mtconnect-go/agentcore/observation"
)

func TestConditionTransitions(t *testing.T) {
	s := &observation.ConditionState{}

	s.Apply(observation.ConditionValue{Level: observation.LevelFault, NativeCode: "101", Message: "overtemp"})
	if len(s.Active) != 1 || s.Active[0].NativeCode != "101" {
		t.Fatalf("expected one active fault, got %+v", s.Active)
	}
	if s.IsNormal() {
		t.Fatal("expected not normal with active fault")
	}

	// Same code replaces, doesn't duplicate.
	s.Apply(observation.ConditionValue{Level: observation.LevelWarning, NativeCode: "101", Message: "cooling"})
	if len(s.Active) != 1 || s.Active[0].Level != observation.LevelWarning {
		t.Fatalf("expected replace in place, got %+v", s.Active)
	}

	// Different code appends.
	s.Apply(observation.ConditionValue{Level: observation.LevelFault, NativeCode: "202"})
	if len(s.Active) != 2 {
		t.Fatalf("expected 2 active faults, got %d", len(s.Active))
	}

	// Normal clearing one code removes only that entry.
	s.Apply(observation.ConditionValue{Level: observation.LevelNormal, NativeCode: "101"})
	if len(s.Active) != 1 || s.Active[0].NativeCode != "202" {
		t.Fatalf("expected only 202 left, got %+v", s.Active)
	}

	// Normal with no code clears everything.
	s.Apply(observation.ConditionValue{Level: observation.LevelNormal})
	if !s.IsNormal() {
		t.Fatalf("expected normal, got %+v", s)
	}
}

func TestConditionUnavailable(t *testing.T) {
	s := &observation.ConditionState{}
	s.Apply(observation.ConditionValue{Level: observation.LevelFault, NativeCode: "1"})
	s.Apply(observation.ConditionValue{Level: observation.LevelUnavailable})

	if !s.Unavailable || len(s.Active) != 0 {
		t.Fatalf("expected unavailable and cleared, got %+v", s)
	}

	s.Apply(observation.ConditionValue{Level: observation.LevelNormal})
	if s.Unavailable {
		t.Fatal("expected a non-unavailable observation to clear Unavailable")
	}
}

func TestConditionCloneIndependence(t *testing.T) {
	s := &observation.ConditionState{Active: []observation.ConditionValue{{NativeCode: "1", Level: observation.LevelFault}}}
	clone := s.Clone()
	clone.Active[0].NativeCode = "changed"
	if s.Active[0].NativeCode != "1" {
		t.Fatal("Clone should be independent of the original")
	}
}

func TestFormatDouble(t *testing.T) {
	cases := map[float64]string{
		1.5:                          "1.5",
		0:                            "0",
	}
	for in, want := range cases {
		if got := observation.FormatDouble(in); got != want {
			t.Errorf("FormatDouble(%v) = %q, want %q", in, got, want)
		}
	}
	nan := observation.FormatDouble(nanValue())
	if nan != "NaN" {
		t.Errorf("FormatDouble(NaN) = %q, want NaN", nan)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
