package store

import (
	"context"
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// RunMeta identifies one run for persistence.
type RunMeta struct {
	Token       string
	Module      string
	Entry       string
	Args        []ir.Value
	ProgramHash string
}

// BeginRun registers a run and returns a writer for its trace events.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - re-registering a
// token is a no-op, which keeps crash-restart writes safe.
//
// The entry arguments are serialized to canonical JSON so the stored run
// is sufficient input for replay verification.
func (s *Store) BeginRun(ctx context.Context, meta RunMeta) (*RunWriter, error) {
	argsJSON, err := marshalValue(ir.List(meta.Args))
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(token, module, entry, args, program_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		meta.Token,
		meta.Module,
		meta.Entry,
		argsJSON,
		meta.ProgramHash,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	return &RunWriter{store: s}, nil
}

// RunWriter appends trace events to the log. It implements the engine's
// TraceSink, so an engine built with this sink persists every event as
// it happens.
type RunWriter struct {
	store *Store
}

// Record inserts one trace event.
// Uses ON CONFLICT DO NOTHING for idempotency - the (run_token, seq)
// primary key means a duplicate write of the same event is silently
// ignored and an event can never be overwritten.
func (w *RunWriter) Record(ctx context.Context, ev ir.TraceEvent) error {
	detailJSON, err := marshalDetail(ev.Detail)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	_, err = w.store.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_token, seq, kind, call_id, unit_id, func, from_ctx, to_ctx, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.Run,
		ev.Seq,
		string(ev.Kind),
		ev.CallID,
		ev.UnitID,
		ev.Func,
		ev.From,
		ev.To,
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	return nil
}
