package lower

import (
	"github.com/gomlx/asyncflow/ir"
)

// LowerRegionKernels rewrites every kernel inside grouped regions to the
// device convention: the region's (chain, stream) are prepended to the
// kernel's operands, a leading chain result is added, and that chain is
// threaded from kernel to kernel, ending at the region's terminator. It runs
// between GroupAsyncRegions and Flatten, once device resources exist in the
// program.
//
// Kernels outside regions are host work and keep their shape. Returns a
// match failure if no region held a kernel.
func LowerRegionKernels(f *ir.Func) error {
	lowered := 0
	for _, op := range f.BlockOps(f.Entry()) {
		if f.OpKindOf(op) != ir.OpAsyncExecute {
			continue
		}
		lowered += lowerRegionBody(f, op)
	}
	if lowered == 0 {
		return matchFailuref("function %q has no region kernel to lower", f.Name())
	}
	return nil
}

func lowerRegionBody(f *ir.Func, region ir.OpID) int {
	body := f.OpBody(region)
	chain := f.BlockArgs(body)[0]
	stream := RegionStream(f, region)
	lowered := 0
	for _, kernel := range f.BlockOps(body) {
		if f.OpKindOf(kernel) != ir.OpKernel {
			continue
		}
		operands := append([]ir.ValueID{chain, stream}, f.Operands(kernel)...)
		resultTypes := []ir.Type{ir.TypeChain}
		oldResults := f.Results(kernel)
		for _, r := range oldResults {
			resultTypes = append(resultTypes, f.ValueType(r))
		}
		replacement := f.Before(kernel).Kernel(f.OpName(kernel), operands, resultTypes...)
		newResults := f.Results(replacement)
		for i, r := range oldResults {
			f.ReplaceAllUses(r, newResults[i+1])
		}
		f.EraseOp(kernel)
		chain = newResults[0]
		lowered++
	}
	if lowered > 0 {
		SetRegionChain(f, region, chain)
	}
	return lowered
}
