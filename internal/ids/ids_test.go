package ids

import "testing"

func TestDepIdRoundTrip(t *testing.T) {
	d := NewDepId()
	parsed, err := ParseDepId(d.String())
	if err != nil {
		t.Fatalf("ParseDepId: %v", err)
	}
	if parsed != d {
		t.Fatalf("round trip mismatch: got %v, want %v", parsed, d)
	}
}

func TestDistinctTypesDoNotMix(t *testing.T) {
	// This test exists to document the invariant, not to exercise
	// runtime behavior: DepId and ResourceId are different Go types, so
	// the following would not compile if uncommented:
	//
	//   var d DepId = NewResourceId()
	//
	d := NewDepId()
	r := NewResourceId()
	if d.String() == r.String() {
		t.Fatalf("uuid collision in test (vanishingly unlikely): %s", d)
	}
}

func TestZeroValue(t *testing.T) {
	var d DepId
	if !d.IsZero() {
		t.Fatal("zero-value DepId should report IsZero")
	}
	if got := NewDepId().IsZero(); got {
		t.Fatal("freshly minted DepId should not be zero")
	}
}
