package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// ErrRunNotFound is returned when a run token has no stored record.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored run with its metadata deserialized.
type Run struct {
	Token         string
	Module        string
	Entry         string
	Args          []ir.Value
	ProgramHash   string
	EngineVersion string
	IRVersion     string
	StartedAt     string
}

// ReadRun loads a run's metadata by token.
func (s *Store) ReadRun(ctx context.Context, token string) (*Run, error) {
	var r Run
	var argsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT token, module, entry, args, program_hash, engine_version, ir_version, started_at
		FROM runs WHERE token = ?
	`, token).Scan(
		&r.Token, &r.Module, &r.Entry, &argsJSON,
		&r.ProgramHash, &r.EngineVersion, &r.IRVersion, &r.StartedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, token)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}

	args, err := unmarshalValue(argsJSON)
	if err != nil {
		return nil, fmt.Errorf("read run args: %w", err)
	}
	list, ok := args.(ir.List)
	if !ok {
		return nil, fmt.Errorf("read run args: stored args are not a list")
	}
	r.Args = list

	return &r, nil
}

// ReadTrace loads a run's full trace in seq order.
func (s *Store) ReadTrace(ctx context.Context, token string) ([]ir.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, call_id, unit_id, func, from_ctx, to_ctx, detail
		FROM trace_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	defer rows.Close()

	var trace []ir.TraceEvent
	for rows.Next() {
		var ev ir.TraceEvent
		var kind, detailJSON string
		if err := rows.Scan(&ev.Seq, &kind, &ev.CallID, &ev.UnitID, &ev.Func, &ev.From, &ev.To, &detailJSON); err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		ev.Run = token
		ev.Kind = ir.TraceKind(kind)
		ev.Detail, err = unmarshalDetail(detailJSON)
		if err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return trace, nil
}

// ListRuns returns every stored run token in insertion order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, module, entry, program_hash, started_at
		FROM runs ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Token, &r.Module, &r.Entry, &r.ProgramHash, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}
