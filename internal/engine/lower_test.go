package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamlang/seam/internal/ir"
)

func TestLowerRejectsUnresolvedCall(t *testing.T) {
	fn := &ir.FuncDecl{
		Sig:  ir.FuncSig{Name: "f", Result: "Int"},
		Body: []ir.Expr{&ir.Return{Expr: &ir.Call{Callee: "g"}}},
	}
	_, err := lowerFunc(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not validated")
}

func TestLowerRejectsExitsInCleanup(t *testing.T) {
	tests := []struct {
		name string
		stmt ir.Expr
	}{
		{"return", &ir.Return{}},
		{"raise", &ir.Raise{Code: "X"}},
		{"nested return", &ir.If{Cond: &ir.Lit{Value: ir.Bool(true)}, Then: []ir.Expr{&ir.Return{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := &ir.FuncDecl{
				Sig: ir.FuncSig{Name: "f"},
				Body: []ir.Expr{
					&ir.DeferBlock{Body: []ir.Expr{tt.stmt}},
				},
			}
			_, err := lowerFunc(fn)
			require.Error(t, err)
		})
	}
}

func TestLowerImplicitUnitReturn(t *testing.T) {
	fn := &ir.FuncDecl{
		Sig:  ir.FuncSig{Name: "f"},
		Body: []ir.Expr{&ir.Let{Name: "x", Value: &ir.Lit{Value: ir.Int(1)}}},
	}
	lo, err := lowerFunc(fn)
	require.NoError(t, err)
	last := lo.Code[len(lo.Code)-1]
	assert.Equal(t, opReturn, last.Op)
	assert.False(t, last.HasVal)
}

func TestLowerClosureLiteralIsUnit(t *testing.T) {
	fn := &ir.FuncDecl{
		Sig: ir.FuncSig{Name: "f"},
		Body: []ir.Expr{
			&ir.Let{Name: "cb", Value: &ir.Closure{Body: []ir.Expr{}}},
		},
	}
	lo, err := lowerFunc(fn)
	require.NoError(t, err)
	assert.Equal(t, ir.Unit{}, lo.Code[0].Val)
}
