package exec

import "testing"

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	vals := []Value{IntValue(42), TextValue("hello"), FloatValue(3.25)}
	encoded := EncodeRow(vals)
	decoded, err := DecodeRow(encoded)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if len(decoded) != len(vals) {
		t.Fatalf("got %d values, want %d", len(decoded), len(vals))
	}
	for i, v := range vals {
		if decoded[i].Kind != v.Kind || decoded[i].String() != v.String() {
			t.Errorf("value %d = %+v, want %+v", i, decoded[i], v)
		}
	}
}

func TestEncodeDecodeEmptyRow(t *testing.T) {
	decoded, err := DecodeRow(EncodeRow(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 0 {
		t.Errorf("got %d values, want 0", len(decoded))
	}
}

func TestDecodeRowRejectsTruncatedInput(t *testing.T) {
	encoded := EncodeRow([]Value{TextValue("hello")})
	_, err := DecodeRow(encoded[:len(encoded)-2])
	if err == nil {
		t.Fatal("expected an error decoding truncated row")
	}
}

func TestCastTextFallsBackToStringOnBadCast(t *testing.T) {
	v := CastText("not-a-number", "INT")
	if v.Kind != "TEXT" || v.S != "not-a-number" {
		t.Errorf("CastText fallback = %+v, want TEXT not-a-number", v)
	}
}

func TestCastTextParsesDeclaredType(t *testing.T) {
	if v := CastText("42", "INT"); v.Kind != "INT" || v.I != 42 {
		t.Errorf("CastText INT = %+v", v)
	}
	if v := CastText("3.5", "FLOAT"); v.Kind != "FLOAT" || v.F != 3.5 {
		t.Errorf("CastText FLOAT = %+v", v)
	}
}
