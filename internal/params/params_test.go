package params

import (
	"errors"
	"testing"
)

func TestComputeID_Deterministic(t *testing.T) {
	a := Fields{"n": 1000, "series": "quick", "seed": 42}
	b := Fields{"seed": 42, "series": "quick", "n": 1000}

	if ComputeID(a) != ComputeID(b) {
		t.Errorf("same content produced different ids: %s vs %s", ComputeID(a), ComputeID(b))
	}
}

func TestComputeID_ContentSensitive(t *testing.T) {
	base := Fields{"n": 1000, "series": "quick"}
	changed := Fields{"n": 2000, "series": "quick"}

	if ComputeID(base) == ComputeID(changed) {
		t.Error("changing a field did not change the id")
	}
}

func TestComputeID_NumericNormalization(t *testing.T) {
	// YAML decodes 1000 as int, gob round-trips may yield float64.
	// Both must fingerprint identically.
	asInt := Fields{"n": int(1000)}
	asInt64 := Fields{"n": int64(1000)}
	asFloat := Fields{"n": float64(1000)}

	if ComputeID(asInt) != ComputeID(asFloat) {
		t.Error("int vs float64 encoding changed the id")
	}
	if ComputeID(asInt64) != ComputeID(asFloat) {
		t.Error("int64 vs float64 encoding changed the id")
	}
}

func TestComputeID_Nested(t *testing.T) {
	a := Fields{"opts": map[string]any{"b": 2, "a": 1}, "xs": []any{1, 2, 3}}
	b := Fields{"opts": map[string]any{"a": 1, "b": 2}, "xs": []any{1, 2, 3}}
	c := Fields{"opts": map[string]any{"a": 1, "b": 2}, "xs": []any{1, 2, 4}}

	if ComputeID(a) != ComputeID(b) {
		t.Error("nested map key order changed the id")
	}
	if ComputeID(a) == ComputeID(c) {
		t.Error("nested slice change did not change the id")
	}
}

func TestEqualByContent(t *testing.T) {
	if !EqualByContent(Fields{"x": 1}, Fields{"x": 1.0}) {
		t.Error("expected content equality across numeric types")
	}
	if EqualByContent(Fields{"x": 1}, Fields{"x": 2}) {
		t.Error("expected content inequality")
	}
}

func TestTestParamsKey_DistinctCells(t *testing.T) {
	tp := TestParams{TID: "t1", DSID: "d1", Prog: "quick"}
	byProg := TestParams{TID: "t1", DSID: "d1", Prog: "merge"}
	byDS := TestParams{TID: "t1", DSID: "d2", Prog: "quick"}

	if tp.Key() == byProg.Key() || tp.Key() == byDS.Key() {
		t.Error("distinct matrix cells share a datapoint key")
	}
	if tp.Key() != (TestParams{TID: "t1", DSID: "d1", Prog: "quick"}).Key() {
		t.Error("identical cell produced different keys")
	}
}

func TestRegistry_CollisionDetection(t *testing.T) {
	r := NewRegistry()

	if err := r.Observe("d1", Fields{"n": 1}); err != nil {
		t.Fatalf("first observe failed: %v", err)
	}
	// Same id, same content: fine.
	if err := r.Observe("d1", Fields{"n": 1}); err != nil {
		t.Fatalf("re-observe of identical fields failed: %v", err)
	}
	// Same id, different content: collision.
	err := r.Observe("d1", Fields{"n": 2})
	if err == nil {
		t.Fatal("expected collision error")
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestNewDatasetParams(t *testing.T) {
	fields := Fields{"n": 500, "series": "merge"}
	dsp := NewDatasetParams(fields)

	if dsp.DSID != ComputeID(fields) {
		t.Error("DSID is not derived from fields")
	}
	if !EqualByContent(dsp.Fields, fields) {
		t.Error("fields were not preserved")
	}
}
