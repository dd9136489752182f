package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// marshalValue serializes a runtime value as canonical JSON so stored
// rows are byte-comparable across runs.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalDetail serializes an event detail record; an absent detail
// stores as the empty string rather than "{}" so it round-trips to nil.
func marshalDetail(detail ir.Rec) (string, error) {
	if detail == nil {
		return "", nil
	}
	return marshalValue(detail)
}

// unmarshalDetail is the inverse of marshalDetail.
func unmarshalDetail(s string) (ir.Rec, error) {
	if s == "" {
		return nil, nil
	}
	v, err := unmarshalValue(s)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(ir.Rec)
	if !ok {
		return nil, fmt.Errorf("detail is not a record: %s", s)
	}
	return rec, nil
}

// unmarshalValue decodes stored canonical JSON back into a runtime
// value. Numbers must be integral; the value domain has no floats.
func unmarshalValue(s string) (ir.Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return fromJSON(raw)
}

func fromJSON(raw any) (ir.Value, error) {
	switch v := raw.(type) {
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integral number %q in stored value", v)
		}
		return ir.Int(i), nil
	case []any:
		list := make(ir.List, len(v))
		for i, elem := range v {
			sv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return list, nil
	case map[string]any:
		rec := make(ir.Rec, len(v))
		for k, elem := range v {
			sv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			rec[k] = sv
		}
		return rec, nil
	default:
		return ir.FromGo(raw)
	}
}
