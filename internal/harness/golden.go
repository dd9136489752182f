package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/seamlang/seam/internal/ir"
)

// TraceSnapshot captures the protocol-visible shape of a scenario's trace
// for golden comparison. Events are reduced to kind, func, from and to:
// seq values and content-addressed IDs are covered by replay verification
// (store.Replay) and would only make golden files impossible to review by
// hand.
type TraceSnapshot struct {
	Scenario string
	RunToken string
	Trace    []ir.TraceEvent
}

// toCanonicalRec converts a TraceSnapshot to an ir.Rec for canonical JSON
// serialization. Empty event fields are omitted.
func (s *TraceSnapshot) toCanonicalRec() ir.Rec {
	traceList := make(ir.List, len(s.Trace))
	for i, ev := range s.Trace {
		rec := ir.Rec{"kind": ir.Str(ev.Kind)}
		if ev.Func != "" {
			rec["func"] = ir.Str(ev.Func)
		}
		if ev.From != "" {
			rec["from"] = ir.Str(ev.From)
		}
		if ev.To != "" {
			rec["to"] = ir.Str(ev.To)
		}
		traceList[i] = rec
	}

	return ir.Rec{
		"scenario":  ir.Str(s.Scenario),
		"run_token": ir.Str(s.RunToken),
		"trace":     traceList,
	}
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against a golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for the expected handoff
// protocol shape of a scenario. Returns an error if scenario execution
// fails; snapshot mismatch fails the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's trace snapshot against the golden file
// named scenarioName. Useful when the scenario has already run.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario: scenarioName,
		RunToken: result.Token,
		Trace:    result.Trace,
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalRec())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
