package verdict

import "testing"

func TestParseDisplayable(t *testing.T) {
	stdout := `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Stop"}}`
	result, err := Parse(stdout, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d, ok := result.(Displayable)
	if !ok {
		t.Fatalf("expected Displayable, got %T", result)
	}
	if d.Status != StatusAC || d.Continue() != Stop {
		t.Fatalf("unexpected result: %+v", d)
	}
}

func TestParseHidden(t *testing.T) {
	stdout := `{"Hidden":{"continue_status":"Continue"}}`
	result, err := Parse(stdout, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	h, ok := result.(Hidden)
	if !ok {
		t.Fatalf("expected Hidden, got %T", result)
	}
	if h.Continue() != Continue {
		t.Fatalf("unexpected continue status: %v", h.Continue())
	}
}

func TestParseNonZeroExitCode(t *testing.T) {
	_, err := Parse(`{"Hidden":{"continue_status":"Continue"}}`, 1)
	if _, ok := err.(*NonZeroExitCode); !ok {
		t.Fatalf("expected *NonZeroExitCode, got %T (%v)", err, err)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse("not json", 0)
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
}

func TestParseMissingTag(t *testing.T) {
	_, err := Parse(`{}`, 0)
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError for a result with neither tag, got %T (%v)", err, err)
	}
}
