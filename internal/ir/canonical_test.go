package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", Str("hello"), `"hello"`},
		{"empty string", Str(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"zero", Int(0), "0"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"unit", Unit{}, `"unit"`},
		{"empty list", List{}, "[]"},
		{"empty rec", Rec{}, "{}"},
		{"list of ints", List{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple rec", Rec{"a": Int(1)}, `{"a":1}`},
		{"nested", Rec{"xs": List{Str("a"), Bool(false)}}, `{"xs":["a",false]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	rec := Rec{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	result, err := MarshalCanonical(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000: UTF-16 code unit order differs from UTF-8 byte
	// order because U+10000 encodes as a surrogate pair starting at 0xD800.
	rec := Rec{
		"":     Int(1),
		"\U00010000": Int(2),
	}

	result, err := MarshalCanonical(rec)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(Str("a<b>&c"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(result))
}

func TestMarshalCanonicalControlEscapes(t *testing.T) {
	result, err := MarshalCanonical(Str("line1\nline2\ttab\x01"))
	require.NoError(t, err)
	assert.Equal(t, `"line1\nline2\ttab"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsUnescaped(t *testing.T) {
	// RFC 8785: U+2028 and U+2029 stay literal.
	result, err := MarshalCanonical(Str("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to precomposed U+00E9.
	decomposed := "é"
	precomposed := "é"

	r1, err := MarshalCanonical(Str(decomposed))
	require.NoError(t, err)
	r2, err := MarshalCanonical(Str(precomposed))
	require.NoError(t, err)
	assert.Equal(t, string(r2), string(r1), "NFC normalization must unify equivalent strings")
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null is forbidden")
}

func TestMarshalCanonicalGoInterop(t *testing.T) {
	// Plain Go maps/slices from YAML decoding marshal identically to their
	// Value equivalents.
	native, err := MarshalCanonical(map[string]any{"n": 1, "s": "x"})
	require.NoError(t, err)
	typed, err := MarshalCanonical(Rec{"n": Int(1), "s": Str("x")})
	require.NoError(t, err)
	assert.Equal(t, string(typed), string(native))
}
