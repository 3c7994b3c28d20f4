package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/asyncflow/ir"
)

func TestYieldReplacesTokensWithEvents(t *testing.T) {
	// Yield count law: one event per token operand, non-token operands
	// untouched.
	f := ir.NewFunc("publish", ir.TypeChain, ir.TypeStream, ir.TypeOpaque)
	args := f.BlockArgs(f.Entry())
	f.AtEnd(f.Entry()).Return()
	p1 := f.Before(f.Terminator(f.Entry())).Pack(args[0], args[1])
	p2 := f.Before(f.Terminator(f.Entry())).Pack(args[0], args[1])
	yield := f.Before(f.Terminator(f.Entry())).Yield(f.Result(p1), args[2], f.Result(p2))

	require.NoError(t, SynthesizeYield(f, yield))
	require.NoError(t, f.Validate())

	var created, recorded int
	for _, op := range f.BlockOps(f.Entry()) {
		switch f.OpKindOf(op) {
		case ir.OpEventCreate:
			created++
		case ir.OpEventRecord:
			recorded++
		}
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, recorded)

	operands := f.Operands(yield)
	require.Len(t, operands, 3)
	assert.Equal(t, ir.TypeEvent, f.ValueType(operands[0]))
	assert.Equal(t, args[2], operands[1])
	assert.Equal(t, ir.TypeEvent, f.ValueType(operands[2]))
	assert.True(t, f.OpErased(p1))
	assert.True(t, f.OpErased(p2))
}

func TestYieldRecordsOnTokenStream(t *testing.T) {
	f := ir.NewFunc("record", ir.TypeChain, ir.TypeStream)
	args := f.BlockArgs(f.Entry())
	f.AtEnd(f.Entry()).Return()
	term := f.Terminator(f.Entry())
	chain := f.Result(f.Before(term).NewChain())
	pack := f.Before(term).Pack(chain, args[1])
	yield := f.Before(term).Yield(f.Result(pack))

	require.NoError(t, SynthesizeYield(f, yield))

	var record ir.OpID = ir.InvalidOp
	for _, op := range f.BlockOps(f.Entry()) {
		if f.OpKindOf(op) == ir.OpEventRecord {
			record = op
		}
	}
	require.NotEqual(t, ir.InvalidOp, record)
	// Recorded on the token's stream, against the token's chain.
	assert.Equal(t, args[1], f.Operand(record, 1))
	assert.Equal(t, chain, f.Operand(record, 2))
}

func TestYieldWithoutTokenFails(t *testing.T) {
	f := ir.NewFunc("plain", ir.TypeOpaque)
	args := f.BlockArgs(f.Entry())
	f.AtEnd(f.Entry()).Return()
	yield := f.Before(f.Terminator(f.Entry())).Yield(args[0])
	before := f.String()

	err := SynthesizeYield(f, yield)
	require.Error(t, err)
	assert.True(t, IsMatchFailure(err))
	assert.Equal(t, before, f.String())
}
