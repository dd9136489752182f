package ir

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization used for content-addressed identity.
//
// Key differences from encoding/json:
//  1. Record keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. U+2028/U+2029 are NOT escaped
//  4. Strings are NFC normalized
//  5. No floats, no nulls (returns error)
//
// Unit marshals as the string "unit": identity payloads must distinguish
// "returned nothing" from "field absent", and RFC 8785 has no null here.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case Unit:
		buf.WriteString(`"unit"`)
		return nil
	case Str:
		return marshalCanonicalString(buf, string(val))
	case string:
		return marshalCanonicalString(buf, val)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case int:
		buf.WriteString(strconv.Itoa(val))
		return nil
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
		return nil
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case List:
		return marshalCanonicalList(buf, val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			sv, err := FromGo(elem)
			if err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = sv
		}
		return marshalCanonicalList(buf, list)
	case Rec:
		return marshalCanonicalRec(buf, val)
	case map[string]any:
		rec := make(Rec, len(val))
		for k, elem := range val {
			sv, err := FromGo(elem)
			if err != nil {
				return fmt.Errorf("rec[%q]: %w", k, err)
			}
			rec[k] = sv
		}
		return marshalCanonicalRec(buf, rec)
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalList(buf *bytes.Buffer, list List) error {
	buf.WriteByte('[')
	for i, elem := range list {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalCanonicalRec(buf *bytes.Buffer, rec Rec) error {
	buf.WriteByte('{')
	for i, k := range rec.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, rec[k]); err != nil {
			return fmt.Errorf("rec[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// marshalCanonicalString writes an NFC-normalized JSON string per RFC 8785.
// Only quote, backslash and control characters below U+0020 are escaped;
// the two-character shorthands are used where the RFC defines them. The
// escaper is written by hand because encoding/json escapes HTML characters
// and U+2028/U+2029, both of which violate canonical form.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	buf.WriteByte('"')
	for _, r := range normalized {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}
