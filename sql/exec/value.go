package exec

import (
	"strconv"

	"github.com/nainya/miniql/catalog"
)

// Value is a single cell of a materialized row. Kind records how the value
// is actually represented, which can diverge from a column's declared type
// when a cast from the stored text failed and the raw string was kept
// instead (the tolerance spec.md documents for a bad cast).
type Value struct {
	Kind catalog.ColType
	I    int64
	F    float64
	S    string
}

// NullValue is the zero Value, rendered as an empty string.
var NullValue = Value{}

func IntValue(i int64) Value     { return Value{Kind: catalog.TypeInt, I: i} }
func FloatValue(f float64) Value { return Value{Kind: catalog.TypeFloat, F: f} }
func TextValue(s string) Value   { return Value{Kind: catalog.TypeText, S: s} }

// CastText casts a raw stored string into colType. On a parse failure it
// falls back to a TEXT value carrying the original string, matching
// _cast_value's try/except behavior in the original executor.
func CastText(raw string, colType catalog.ColType) Value {
	switch colType {
	case catalog.TypeInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return IntValue(n)
		}
		return TextValue(raw)
	case catalog.TypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return FloatValue(f)
		}
		return TextValue(raw)
	default:
		return TextValue(raw)
	}
}

// String renders v for row serialization and result display.
func (v Value) String() string {
	switch v.Kind {
	case catalog.TypeInt:
		return strconv.FormatInt(v.I, 10)
	case catalog.TypeFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	default:
		return v.S
	}
}

// asFloat reports v's value as a float64 when it carries a numeric kind.
func (v Value) asFloat() (float64, bool) {
	switch v.Kind {
	case catalog.TypeInt:
		return float64(v.I), true
	case catalog.TypeFloat:
		return v.F, true
	default:
		// A TEXT value that happens to look numeric is still coerced, to
		// match the executor's "both sides parse as numbers" rule.
		if f, err := strconv.ParseFloat(v.S, 64); err == nil {
			return f, true
		}
		return 0, false
	}
}

// compare orders a and b, preferring a numeric comparison when both sides
// parse as numbers and falling back to a string comparison otherwise.
func compare(a, b Value) int {
	af, aok := a.asFloat()
	bf, bok := b.asFloat()
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
