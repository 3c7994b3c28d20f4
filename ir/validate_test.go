package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormed(t *testing.T) {
	f := NewFunc("ok", TypeChain, TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	context := f.Result(at.StreamGetContext(args[1]))
	event := f.Result(at.EventCreate(context))
	chain := f.Result(at.EventRecord(event, args[1], args[0]))
	at.Return(chain)
	f.SetResultTypes(TypeChain)

	require.NoError(t, f.Validate())
}

func TestValidateRejectsMistypedOperand(t *testing.T) {
	f := NewFunc("bad", TypeChain, TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	pack := at.Pack(args[0], args[1])
	at.Return(args[0])

	// Swap the pack operands behind the cursor's back.
	f.SetOperands(pack, args[1], args[0])
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pack")
}

func TestValidateRejectsMissingTerminator(t *testing.T) {
	f := NewFunc("bad")
	f.AtEnd(f.Entry()).Kernel("work", nil)
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terminator")
}

func TestValidateRejectsMisplacedTerminator(t *testing.T) {
	f := NewFunc("bad")
	at := f.AtEnd(f.Entry())
	at.Return()
	f.AtEnd(f.Entry()).Kernel("late", nil)
	require.Error(t, f.Validate())
}

func TestValidateChecksRegionBodies(t *testing.T) {
	f := NewFunc("regions")
	at := f.AtEnd(f.Entry())
	region := at.AsyncExecute()
	at.Return()
	require.NoError(t, f.Validate())

	// Body terminator must return exactly one chain.
	body := f.OpBody(region)
	f.SetOperands(f.Terminator(body))
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body terminator")
}

func TestValidateRejectsOperandOfErasedOp(t *testing.T) {
	f := NewFunc("erased")
	at := f.AtEnd(f.Entry())
	chain := at.NewChain()
	at.Return(f.Result(chain))

	term := f.Terminator(f.Entry())
	chainValue := f.Result(chain)
	f.SetOperands(term)
	f.EraseOp(chain)
	f.SetOperands(term, chainValue)

	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erased")
}
