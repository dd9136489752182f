package store

import (
	"context"
	"fmt"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/tracefilter"
)

// FilteredTrace loads the subset of a run's trace matching the filter,
// in seq order. A nil filter is equivalent to ReadTrace.
func (s *Store) FilteredTrace(ctx context.Context, token string, f tracefilter.Filter) ([]ir.TraceEvent, error) {
	query, params, err := tracefilter.Compile(token, f)
	if err != nil {
		return nil, fmt.Errorf("filtered trace: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("filtered trace: %w", err)
	}
	defer rows.Close()

	var trace []ir.TraceEvent
	for rows.Next() {
		var ev ir.TraceEvent
		var kind, detailJSON string
		if err := rows.Scan(&ev.Seq, &kind, &ev.CallID, &ev.UnitID, &ev.Func, &ev.From, &ev.To, &detailJSON); err != nil {
			return nil, fmt.Errorf("filtered trace: %w", err)
		}
		ev.Run = token
		ev.Kind = ir.TraceKind(kind)
		ev.Detail, err = unmarshalDetail(detailJSON)
		if err != nil {
			return nil, fmt.Errorf("filtered trace: %w", err)
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("filtered trace: %w", err)
	}

	return trace, nil
}
