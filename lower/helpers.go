package lower

import (
	"github.com/gomlx/asyncflow/ir"
)

// definingPack returns the pack op producing v, or ir.InvalidOp if v is not
// the direct result of a pack. Detection is a kind lookup on the defining
// op: pack is the only producer of tokens, so any value reaching a token
// position through anything else (a call, a block argument) is opaque and
// fails the lookup.
func definingPack(f *ir.Func, v ir.ValueID) ir.OpID {
	def := f.DefOp(v)
	if def == ir.InvalidOp || f.OpKindOf(def) != ir.OpPack {
		return ir.InvalidOp
	}
	return def
}

// IsNormalized reports whether f has the normalized shape: leading (chain,
// stream) parameters, a single chain result, and a terminator returning one
// chain.
func IsNormalized(f *ir.Func) bool {
	args := f.BlockArgs(f.Entry())
	if len(args) < 2 || f.ValueType(args[0]) != ir.TypeChain || f.ValueType(args[1]) != ir.TypeStream {
		return false
	}
	results := f.ResultTypes()
	if len(results) != 1 || results[0] != ir.TypeChain {
		return false
	}
	term := f.Terminator(f.Entry())
	return term != ir.InvalidOp && f.NumOperands(term) == 1 &&
		f.ValueType(f.Operand(term, 0)) == ir.TypeChain
}

// RegionStream returns the stream argument of an async-execute region's
// body. Kernel lowerings use it to address the region's stream while the
// region is still grouped.
func RegionStream(f *ir.Func, region ir.OpID) ir.ValueID {
	if f.OpKindOf(region) != ir.OpAsyncExecute {
		return ir.InvalidValue
	}
	return f.BlockArgs(f.OpBody(region))[1]
}

// RegionChain returns the chain currently returned by an async-execute
// region's body terminator.
func RegionChain(f *ir.Func, region ir.OpID) ir.ValueID {
	if f.OpKindOf(region) != ir.OpAsyncExecute {
		return ir.InvalidValue
	}
	term := f.Terminator(f.OpBody(region))
	if term == ir.InvalidOp || f.NumOperands(term) == 0 {
		return ir.InvalidValue
	}
	return f.Operand(term, 0)
}

// SetRegionChain makes chain the value returned by the region's body
// terminator. Kernel lowerings call it after threading the body chain
// through a newly emitted operation.
func SetRegionChain(f *ir.Func, region ir.OpID, chain ir.ValueID) {
	term := f.Terminator(f.OpBody(region))
	f.SetOperands(term, chain)
}

// schedulable reports whether the target may move op into a region. The
// grouping constructs themselves and terminators stay in place regardless.
func schedulable(f *ir.Func, op ir.OpID, target Target) bool {
	switch f.OpKindOf(op) {
	case ir.OpReturn, ir.OpAsyncExecute:
		return false
	}
	return target.IsLegal(f, op)
}
