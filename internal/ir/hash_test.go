package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallIDDeterminism(t *testing.T) {
	args := List{Str("https://example.test"), Int(2)}

	id1, err := CallID("run-123", "fetch(url: Str) async -> Str", args, 1)
	require.NoError(t, err)
	id2, err := CallID("run-123", "fetch(url: Str) async -> Str", args, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "CallID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestCallIDChangesWithInput(t *testing.T) {
	args := List{Int(1)}

	base, err := CallID("run-1", "f() -> Int", args, 1)
	require.NoError(t, err)

	otherRun, err := CallID("run-2", "f() -> Int", args, 1)
	require.NoError(t, err)
	otherSeq, err := CallID("run-1", "f() -> Int", args, 2)
	require.NoError(t, err)
	otherSig, err := CallID("run-1", "f() async -> Int", args, 1)
	require.NoError(t, err)

	assert.NotEqual(t, base, otherRun)
	assert.NotEqual(t, base, otherSeq)
	assert.NotEqual(t, base, otherSig, "qualifiers are part of call identity")
}

func TestUnitIDDistinguishesKinds(t *testing.T) {
	callID, err := CallID("run-1", "g() async -> Unit", List{}, 1)
	require.NoError(t, err)

	entry, err := UnitID(callID, "callee-entry", 2)
	require.NoError(t, err)
	resume, err := UnitID(callID, "caller-resume", 2)
	require.NoError(t, err)

	assert.NotEqual(t, entry, resume, "the two units of one call must have distinct IDs")
}

func TestProgramHashStability(t *testing.T) {
	p := &Program{
		Module: "demo",
		Funcs: []*FuncDecl{
			{Sig: FuncSig{Name: "f", Async: true, Result: "Int"}},
			{Sig: FuncSig{Name: "g", Throws: true}},
		},
	}

	h1, err := ProgramHash(p)
	require.NoError(t, err)
	h2, err := ProgramHash(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Changing a qualifier changes the surface, so the hash moves.
	p.Funcs[0].Sig.Async = false
	h3, err := ProgramHash(p)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestProgramHashCoversBodies(t *testing.T) {
	mkProgram := func() *Program {
		return &Program{
			Module: "demo",
			Funcs: []*FuncDecl{
				{Sig: FuncSig{Name: "f", Result: "Int"},
					Body: []Expr{&Return{Expr: &Lit{Value: Int(1)}}}},
			},
		}
	}

	base := mkProgram()
	h1, err := ProgramHash(base)
	require.NoError(t, err)

	// A body edit invisible to every signature must still move the hash,
	// or replay would compare traces of two different programs.
	edited := mkProgram()
	edited.Funcs[0].Body = []Expr{
		&Let{Name: "x", Value: &Lit{Value: Int(1)}},
		&Return{Expr: &Ref{Name: "x"}},
	}
	h2, err := ProgramHash(edited)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	// Context affinity changes where calls run, so it moves the hash too.
	relabeled := mkProgram()
	relabeled.Funcs[0].Sig.Async = true
	relabeled.Funcs[0].Sig.Context = "io"
	h3, err := ProgramHash(relabeled)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestProgramHashIgnoresPositionsAndAnnotations(t *testing.T) {
	mkProgram := func() *Program {
		return &Program{
			Module: "demo",
			Funcs: []*FuncDecl{
				{Sig: FuncSig{Name: "g", Async: true, Result: "Int"},
					Body: []Expr{&Return{Expr: &Call{Callee: "g"}}}},
			},
		}
	}

	plain := mkProgram()
	h1, err := ProgramHash(plain)
	require.NoError(t, err)

	decorated := mkProgram()
	decorated.Funcs[0].Pos = Pos{File: "demo.cue", Line: 3, Col: 1}
	call := decorated.Funcs[0].Body[0].(*Return).Expr.(*Call)
	call.Pos = Pos{File: "demo.cue", Line: 4, Col: 12}
	call.Resolved = &decorated.Funcs[0].Sig
	call.Suspends = true

	h2, err := ProgramHash(decorated)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "positions and validator annotations are not program identity")
}
