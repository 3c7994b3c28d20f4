package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEmitsInProgramOrder(t *testing.T) {
	f := NewFunc("demo", TypeOpaque)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	fill := at.Kernel("fill", []ValueID{args[0]})
	scale := at.Kernel("scale", []ValueID{args[0]})
	at.Return()

	ops := f.BlockOps(f.Entry())
	require.Len(t, ops, 3)
	assert.Equal(t, []OpID{fill, scale}, ops[:2])
	assert.Equal(t, OpReturn, f.OpKindOf(ops[2]))
	assert.Equal(t, "fill", f.OpName(fill))
	assert.Equal(t, f.Terminator(f.Entry()), ops[2])
}

func TestCursorTypeChecking(t *testing.T) {
	f := NewFunc("demo", TypeChain, TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	// Pack wants (chain, stream); swapping them is a programming error.
	require.Panics(t, func() { at.Pack(args[1], args[0]) })
	pack := at.Pack(args[0], args[1])
	assert.Equal(t, TypeToken, f.ValueType(f.Result(pack)))
}

func TestMoveOpRangePreservesOrder(t *testing.T) {
	f := NewFunc("demo")
	at := f.AtEnd(f.Entry())
	a := at.Kernel("a", nil)
	b := at.Kernel("b", nil)
	c := at.Kernel("c", nil)
	at.Return()

	region := f.Before(a).AsyncExecute()
	body := f.OpBody(region)
	f.MoveOpRange(f.Entry(), 1, 3, body, 0)

	assert.Equal(t, []OpID{a, b}, f.BlockOps(body)[:2])
	entryOps := f.BlockOps(f.Entry())
	require.Len(t, entryOps, 3)
	assert.Equal(t, region, entryOps[0])
	assert.Equal(t, c, entryOps[1])
	assert.Equal(t, body, f.OpBlock(a))
}

func TestReplaceAllUses(t *testing.T) {
	f := NewFunc("demo", TypeChain, TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	chain := f.Result(at.NewChain())
	wait := at.StreamWait(args[1], f.Result(at.EventCreate(f.Result(at.StreamGetContext(args[1])))), args[0])
	at.Return(args[0])

	f.ReplaceAllUses(args[0], chain)
	assert.Equal(t, chain, f.Operand(wait, 2))
	assert.Equal(t, chain, f.Operand(f.Terminator(f.Entry()), 0))
	assert.Empty(t, f.UsesOf(args[0]))
}

func TestEraseOpRejectsLiveUses(t *testing.T) {
	f := NewFunc("demo")
	at := f.AtEnd(f.Entry())
	chain := at.NewChain()
	at.Return(f.Result(chain))

	require.Panics(t, func() { f.EraseOp(chain) })

	term := f.Terminator(f.Entry())
	f.SetOperands(term)
	f.EraseOp(chain)
	assert.True(t, f.OpErased(chain))
	require.Len(t, f.BlockOps(f.Entry()), 1)
}

func TestTransactionRollback(t *testing.T) {
	f := NewFunc("demo", TypeChain, TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	at.Kernel("work", []ValueID{args[0]})
	at.Return(args[0])
	before := f.String()

	tx := f.Stage()
	at = f.AtStart(f.Entry())
	at.NewChain()
	at.Pack(args[0], args[1])
	f.SetResultTypes(TypeChain)
	require.NotEqual(t, before, f.String())
	tx.Rollback()

	assert.Equal(t, before, f.String())
	assert.Empty(t, f.ResultTypes())
}

func TestTransactionCommit(t *testing.T) {
	f := NewFunc("demo")
	f.AtEnd(f.Entry()).Return()

	tx := f.Stage()
	f.AtStart(f.Entry()).Kernel("work", nil)
	staged := f.String()
	tx.Commit()

	assert.Equal(t, staged, f.String())
	require.Panics(t, func() { tx.Rollback() })
}

func TestListingIsDeterministic(t *testing.T) {
	f := NewFunc("axpy", TypeOpaque)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	region := at.AsyncExecute()
	body := f.OpBody(region)
	bodyArgs := f.BlockArgs(body)
	f.AtStart(body).Kernel("gpu.axpy", []ValueID{bodyArgs[0], bodyArgs[1], args[0]})
	at.Return()

	want := `func @axpy(%0: opaque) {
  %1 = async.execute {
  ^(%2: chain, %3: stream):
    kernel "gpu.axpy"(%2, %3, %0)
    return(%2)
  }
  return
}
`
	assert.Equal(t, want, f.String())
}
