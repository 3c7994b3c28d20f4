package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/asyncflow/ir"
)

// buildGroupedProgram builds the canonical two-region program:
//
//	%t = await async []                      // fork a device scope
//	%r1 = async.execute(%t)  { gpu.a; gpu.b }
//	host.log
//	%r2 = async.execute(%r1) { gpu.d }       // chained on the first region
//	await [%r2]                              // join back into the function
//	return
//
// starting from plain kernels: grouping, token wiring and kernel lowering
// are applied the way the driving framework would.
func buildGroupedProgram(t *testing.T) *ir.Func {
	t.Helper()
	f := ir.NewFunc("main")
	at := f.AtEnd(f.Entry())
	at.Kernel("gpu.a", nil)
	at.Kernel("gpu.b", nil)
	at.Kernel("host.log", nil)
	at.Kernel("gpu.d", nil)
	at.Return()

	require.NoError(t, GroupAsyncRegions(f, gpuTarget))
	entryOps := f.BlockOps(f.Entry())
	require.Equal(t, []ir.OpKind{ir.OpAsyncExecute, ir.OpKernel, ir.OpAsyncExecute, ir.OpReturn},
		kindsOf(f, f.Entry()))
	r1, r2 := entryOps[0], entryOps[2]

	fork := f.Before(r1).Await(nil, true)
	f.SetOperands(r1, f.Result(fork))
	f.SetOperands(r2, f.Result(r1))
	f.Before(f.Terminator(f.Entry())).Await([]ir.ValueID{f.Result(r2)}, false)

	require.NoError(t, LowerRegionKernels(f))
	return f
}

func TestFlattenEndToEnd(t *testing.T) {
	f := buildGroupedProgram(t)
	require.NoError(t, Flatten(f))
	require.NoError(t, f.Validate())
	require.True(t, IsNormalized(f))

	// Kernel order survives flattening exactly.
	assert.Equal(t, []string{"gpu.a", "gpu.b", "host.log", "gpu.d"}, kernelNames(f, f.Entry()))

	// No region, await, pack or token survives.
	for _, op := range f.BlockOps(f.Entry()) {
		kind := f.OpKindOf(op)
		assert.NotContains(t, []ir.OpKind{ir.OpAsyncExecute, ir.OpAwait, ir.OpPack}, kind)
		for _, operand := range f.Operands(op) {
			assert.NotEqual(t, ir.TypeToken, f.ValueType(operand))
		}
	}

	// The fork emitted its ordering edge before any kernel runs on the
	// child stream: new chain, event recorded on the function stream, a
	// child stream waiting on it.
	want := []ir.OpKind{
		ir.OpNewChain,
		ir.OpStreamGetContext,
		ir.OpEventCreate,
		ir.OpEventRecord,
		ir.OpStreamCreate,
		ir.OpStreamWait,
		ir.OpKernel, // gpu.a
		ir.OpKernel, // gpu.b
		ir.OpKernel, // host.log
		ir.OpKernel, // gpu.d
		ir.OpReturn,
	}
	assert.Equal(t, want, kindsOf(f, f.Entry()))

	ops := f.BlockOps(f.Entry())
	childStream := f.Result(ops[4])
	gpuA, gpuB, gpuD := ops[6], ops[7], ops[9]

	// Device kernels all run on the forked child stream, chained in order.
	assert.Equal(t, childStream, f.Operand(gpuA, 1))
	assert.Equal(t, childStream, f.Operand(gpuB, 1))
	assert.Equal(t, childStream, f.Operand(gpuD, 1))
	assert.Equal(t, f.Result(gpuA), f.Operand(gpuB, 0))
	assert.Equal(t, f.Result(gpuB), f.Operand(gpuD, 0))

	// The join advanced the function chain to the last kernel's chain.
	assert.Equal(t, f.Result(gpuD), f.Operand(f.Terminator(f.Entry()), 0))
}

func TestFlattenIsDeferredUntilPacksExist(t *testing.T) {
	// The second region's unwrap can only match after the first region has
	// been repacked, which itself waits on the fork's wait synthesis. A
	// single Flatten call drives all of it to a fixpoint.
	f := buildGroupedProgram(t)
	require.NoError(t, Flatten(f))

	// Everything got there: exactly one stream.create (the fork), one
	// event.record (the fork's ordering edge), one stream.wait.
	var creates, records, waits int
	for _, op := range f.BlockOps(f.Entry()) {
		switch f.OpKindOf(op) {
		case ir.OpStreamCreate:
			creates++
		case ir.OpEventRecord:
			records++
		case ir.OpStreamWait:
			waits++
		}
	}
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, records)
	assert.Equal(t, 1, waits)
}

func TestFlattenHardFailureRollsBack(t *testing.T) {
	// A region whose token never traces to a pack cannot be lowered; the
	// whole conversion must fail and leave the function untouched.
	f := ir.NewFunc("stuck", ir.TypeToken)
	tokenArg := f.BlockArgs(f.Entry())[0]
	at := f.AtEnd(f.Entry())
	region := at.AsyncExecute()
	f.SetOperands(region, tokenArg)
	at.Return()
	before := f.String()

	err := Flatten(f)
	require.Error(t, err)
	assert.False(t, IsMatchFailure(err))
	assert.Contains(t, err.Error(), "async.execute")
	assert.Equal(t, before, f.String())
}

func TestFlattenRejectsFunctionWithResult(t *testing.T) {
	// A function with a declared non-chain result can never normalize:
	// hard failure, input untouched.
	f := ir.NewFunc("value")
	f.SetResultTypes(ir.TypeOpaque)
	f.AtEnd(f.Entry()).Return()
	before := f.String()

	err := Flatten(f)
	require.Error(t, err)
	assert.False(t, IsMatchFailure(err))
	assert.Equal(t, before, f.String())
}

func TestFlattenOnAlreadyFlatFunction(t *testing.T) {
	// A function with nothing to rewrite just normalizes.
	f := ir.NewFunc("flat", ir.TypeOpaque)
	args := f.BlockArgs(f.Entry())
	at := f.AtEnd(f.Entry())
	at.Kernel("host.log", []ir.ValueID{args[0]})
	at.Return()

	require.NoError(t, Flatten(f))
	require.True(t, IsNormalized(f))
	assert.Equal(t, []string{"host.log"}, kernelNames(f, f.Entry()))
}
