package store

import (
	"context"
	"fmt"

	"github.com/seamlang/seam/internal/engine"
	"github.com/seamlang/seam/internal/ir"
)

// Divergence describes the first point where a replayed trace differs
// from the stored one.
type Divergence struct {
	Index    int
	Stored   *ir.TraceEvent // nil when the replay produced extra events
	Replayed *ir.TraceEvent // nil when the replay produced fewer events
}

func (d *Divergence) String() string {
	switch {
	case d.Stored == nil:
		return fmt.Sprintf("event %d: replay produced extra %s", d.Index, d.Replayed.Kind)
	case d.Replayed == nil:
		return fmt.Sprintf("event %d: replay is missing stored %s", d.Index, d.Stored.Kind)
	default:
		return fmt.Sprintf("event %d: stored %s(seq=%d) vs replayed %s(seq=%d)",
			d.Index, d.Stored.Kind, d.Stored.Seq, d.Replayed.Kind, d.Replayed.Seq)
	}
}

// ReplayReport is the outcome of replay verification.
type ReplayReport struct {
	Token      string
	Events     int
	Match      bool
	Divergence *Divergence
}

// Replay re-executes a stored run against the program and compares the
// fresh trace event-by-event with the stored one.
//
// Every source of nondeterminism in the engine is injected - the run
// token, the logical clock, context resolution - so a well-formed store
// and an unchanged program must reproduce the trace exactly, including
// call and unit identities. A hash mismatch means the program changed
// since the run and replay is refused.
func (s *Store) Replay(ctx context.Context, p *ir.Program, token string) (*ReplayReport, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return nil, err
	}

	hash, err := ir.ProgramHash(p)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if hash != run.ProgramHash {
		return nil, fmt.Errorf("replay %s: program hash %s does not match stored %s",
			token, hash, run.ProgramHash)
	}

	stored, err := s.ReadTrace(ctx, token)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(p, engine.WithRunTokens(engine.NewFixedGenerator(token)))
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	// The run result itself is irrelevant here; a raised error is part
	// of legitimate traced behavior.
	res, runErr := eng.Run(ctx, run.Entry, run.Args)
	if res == nil {
		return nil, fmt.Errorf("replay: %w", runErr)
	}

	report := &ReplayReport{Token: token, Events: len(stored), Match: true}
	if d := diffTraces(stored, res.Trace); d != nil {
		report.Match = false
		report.Divergence = d
	}
	return report, nil
}

// diffTraces returns the first divergence between two traces, or nil
// when they are identical.
func diffTraces(stored, replayed []ir.TraceEvent) *Divergence {
	n := len(stored)
	if len(replayed) > n {
		n = len(replayed)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(stored):
			return &Divergence{Index: i, Replayed: &replayed[i]}
		case i >= len(replayed):
			return &Divergence{Index: i, Stored: &stored[i]}
		case !sameEvent(stored[i], replayed[i]):
			return &Divergence{Index: i, Stored: &stored[i], Replayed: &replayed[i]}
		}
	}
	return nil
}

func sameEvent(a, b ir.TraceEvent) bool {
	if a.Seq != b.Seq || a.Kind != b.Kind || a.Run != b.Run ||
		a.CallID != b.CallID || a.UnitID != b.UnitID ||
		a.Func != b.Func || a.From != b.From || a.To != b.To {
		return false
	}
	if a.Detail == nil || b.Detail == nil {
		return a.Detail == nil && b.Detail == nil
	}
	return ir.Equal(a.Detail, b.Detail)
}
