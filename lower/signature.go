package lower

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// RewriteSignature normalizes a zero-result function to the device calling
// convention: two new leading parameters (chain, then stream) ahead of the
// original parameter list, and a single chain result. The terminator is
// rewritten to return the chain parameter as a placeholder; wait synthesis
// refines it later.
//
// Functions that already declare a result are rejected with a match
// failure. That also makes the rewrite safe against re-application: a
// normalized function declares one result, so a second pass rejects it
// instead of inserting the parameters twice.
func RewriteSignature(f *ir.Func) error {
	if len(f.ResultTypes()) > 0 {
		return matchFailuref("function %q declares a result", f.Name())
	}
	oldEntry := f.Entry()
	term := f.Terminator(oldEntry)
	if term == ir.InvalidOp {
		return matchFailuref("function %q has no terminator", f.Name())
	}

	oldArgs := f.BlockArgs(oldEntry)
	argTypes := make([]ir.Type, 0, len(oldArgs)+2)
	argTypes = append(argTypes, ir.TypeChain, ir.TypeStream)
	for _, arg := range oldArgs {
		argTypes = append(argTypes, f.ValueType(arg))
	}

	// New entry block carrying (chain, stream) plus the original
	// parameters, index-shifted by two.
	entry := f.NewBlock(ir.InvalidOp, argTypes...)
	newArgs := f.BlockArgs(entry)
	f.MoveOpRange(oldEntry, 0, f.NumBlockOps(oldEntry), entry, 0)
	for i, arg := range oldArgs {
		f.ReplaceAllUses(arg, newArgs[i+2])
	}
	f.RemoveBlock(oldEntry)
	f.SetEntry(entry)

	f.SetResultTypes(ir.TypeChain)
	f.SetOperands(term, newArgs[0])

	klog.V(2).Infof("normalized signature of %q: %d parameters, chain result", f.Name(), len(newArgs))
	return nil
}
