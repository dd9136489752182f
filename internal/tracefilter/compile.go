package tracefilter

import (
	"fmt"
	"strings"
)

// Compile converts a filter into a parameterized SQL query over
// trace_events for one run. A nil filter selects the whole trace.
//
// Every query orders by seq ASC so results reproduce the protocol
// order; values are always parameterized, never interpolated.
func Compile(runToken string, f Filter) (string, []any, error) {
	where := []string{"run_token = ?"}
	params := []any{runToken}

	if f != nil {
		sql, fparams, err := compileFilter(f)
		if err != nil {
			return "", nil, err
		}
		where = append(where, sql)
		params = append(params, fparams...)
	}

	query := fmt.Sprintf(
		"SELECT seq, kind, call_id, unit_id, func, from_ctx, to_ctx, detail FROM trace_events WHERE %s ORDER BY seq ASC",
		strings.Join(where, " AND "))

	return query, params, nil
}

func compileFilter(f Filter) (string, []any, error) {
	switch flt := f.(type) {
	case KindIs:
		return "kind = ?", []any{string(flt.Kind)}, nil
	case *KindIs:
		return compileFilter(*flt)
	case FuncIs:
		return "func = ?", []any{flt.Func}, nil
	case *FuncIs:
		return compileFilter(*flt)
	case CallIs:
		return "call_id = ?", []any{flt.CallID}, nil
	case *CallIs:
		return compileFilter(*flt)
	case ContextIs:
		return "(from_ctx = ? OR to_ctx = ?)", []any{flt.Context, flt.Context}, nil
	case *ContextIs:
		return compileFilter(*flt)
	case SeqAtLeast:
		return "seq >= ?", []any{flt.Seq}, nil
	case *SeqAtLeast:
		return compileFilter(*flt)
	case SeqAtMost:
		return "seq <= ?", []any{flt.Seq}, nil
	case *SeqAtMost:
		return compileFilter(*flt)
	case And:
		return compileAnd(flt)
	case *And:
		return compileAnd(*flt)
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Filters) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	var parts []string
	var params []any
	for _, f := range and.Filters {
		sql, fparams, err := compileFilter(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, fparams...)
	}

	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}
