package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/asyncflow/ir"
)

func TestUnwrapSplicesBodyInPlace(t *testing.T) {
	f := ir.NewFunc("unwrap", ir.TypeChain, ir.TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	pack := at.Pack(args[0], args[1])
	region := at.AsyncExecute()
	f.SetOperands(region, f.Result(pack))
	yield := at.Yield(f.Result(region))
	at.Return()

	// Fill the body the way kernel lowering would: a kernel threading the
	// body's (chain, stream).
	body := f.OpBody(region)
	bodyArgs := f.BlockArgs(body)
	kernel := f.AtStart(body).Kernel("gpu.work", []ir.ValueID{bodyArgs[0], bodyArgs[1]}, ir.TypeChain)
	SetRegionChain(f, region, f.Result(kernel))

	require.NoError(t, UnwrapAsyncRegion(f, region))
	require.NoError(t, f.Validate())

	// Body spliced at the region's position; internal chain/stream rewired
	// to the outer values; the region's token replaced by a new pack of
	// (body's final chain, outer stream).
	assert.Equal(t, []ir.OpKind{ir.OpKernel, ir.OpPack, ir.OpYield, ir.OpReturn}, kindsOf(f, f.Entry()))
	assert.Equal(t, []ir.ValueID{args[0], args[1]}, f.Operands(kernel))
	repack := f.BlockOps(f.Entry())[1]
	assert.Equal(t, []ir.ValueID{f.Result(kernel), args[1]}, f.Operands(repack))
	assert.Equal(t, f.Result(repack), f.Operand(yield, 0))
	assert.True(t, f.OpErased(region))
	assert.True(t, f.OpErased(pack))
}

func TestUnwrapDefersOnOpaqueToken(t *testing.T) {
	// Scenario: the region's token is reached only through an opaque
	// intervening call, not a direct pack. The unwrap must defer.
	f := ir.NewFunc("opaque", ir.TypeChain, ir.TypeStream)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	pack := at.Pack(args[0], args[1])
	laundered := at.Kernel("host.passthrough", []ir.ValueID{f.Result(pack)}, ir.TypeToken)
	region := at.AsyncExecute()
	f.SetOperands(region, f.Result(laundered))
	at.Return()
	before := f.String()

	err := UnwrapAsyncRegion(f, region)
	require.Error(t, err)
	assert.True(t, IsMatchFailure(err))
	assert.Equal(t, before, f.String())
}

func TestUnwrapDefersWithoutToken(t *testing.T) {
	f := ir.NewFunc("bare")
	at := f.AtEnd(f.Entry())
	region := at.AsyncExecute()
	at.Return()

	err := UnwrapAsyncRegion(f, region)
	require.Error(t, err)
	assert.True(t, IsMatchFailure(err))
}

func TestWrapThenUnwrapRoundTrip(t *testing.T) {
	// Round-trip: wrapping and then unwrapping with an identity lowering
	// in between leaves operation order and wiring intact.
	f := ir.NewFunc("roundtrip", ir.TypeChain, ir.TypeStream, ir.TypeOpaque)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	at.Kernel("gpu.a", []ir.ValueID{args[2]})
	at.Kernel("gpu.b", []ir.ValueID{args[2]})
	at.Kernel("host.c", nil)
	at.Kernel("gpu.d", nil)
	at.Return()
	originalNames := kernelNames(f, f.Entry())

	require.NoError(t, WrapAsyncRegions(f, gpuTarget))

	// Identity lowering: hand every region a token packed from the
	// function's own (chain, stream).
	for _, op := range f.BlockOps(f.Entry()) {
		if f.OpKindOf(op) != ir.OpAsyncExecute {
			continue
		}
		pack := f.Before(op).Pack(args[0], args[1])
		f.SetOperands(op, f.Result(pack))
		require.NoError(t, UnwrapAsyncRegion(f, op))
	}
	require.NoError(t, f.Validate())

	assert.Equal(t, originalNames, kernelNames(f, f.Entry()))
	for _, op := range f.BlockOps(f.Entry()) {
		switch f.OpKindOf(op) {
		case ir.OpKernel:
			// Wiring unchanged: kernels still reference the original values.
			for _, operand := range f.Operands(op) {
				assert.Equal(t, args[2], operand)
			}
		case ir.OpPack:
			// The only residue: a dead repack of the boundary token.
			assert.Empty(t, f.UsesOf(f.Result(op)))
		}
	}
}
