package lower

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// UnwrapAsyncRegion inlines an async-execute region back into its parent
// block, once its token operand is structurally traceable to a pack op.
//
//	%t0 = pack(%ch0, %stream)
//	%t1 = async.execute(%t0) {
//	^(%c: chain, %s: stream):
//	  ... ops using %c and %s ...
//	  return %cn
//	}
//
// becomes
//
//	... ops using %ch0 and %stream, spliced in place ...
//	%t1 = pack(%cn, %stream)
//
// A token reaching the region through anything but a direct pack (an opaque
// pass-through value, a call result) defers with a match failure; the region
// stays intact and can be retried after wait synthesis has materialized the
// pack. All match checks run before any edit, so a failed unwrap leaves the
// function untouched.
func UnwrapAsyncRegion(f *ir.Func, region ir.OpID) error {
	if f.OpKindOf(region) != ir.OpAsyncExecute {
		return matchFailuref("op #%d is %s, not async.execute", region, f.OpKindOf(region))
	}
	if f.NumOperands(region) == 0 || f.Result(region) == ir.InvalidValue {
		return matchFailuref("async.execute #%d has no token operand or no result", region)
	}
	token := f.Operand(region, 0)
	pack := definingPack(f, token)
	if pack == ir.InvalidOp {
		return matchFailuref("async.execute #%d: token does not trace to a pack", region)
	}
	if uses := f.UsesOf(token); len(uses) != 1 {
		return matchFailuref("async.execute #%d: token has %d other uses", region, len(uses)-1)
	}

	outerChain := f.Operand(pack, 0)
	outerStream := f.Operand(pack, 1)
	body := f.OpBody(region)
	bodyArgs := f.BlockArgs(body)

	// Rewire the body's local (chain, stream) to the real outer values.
	f.ReplaceAllUses(bodyArgs[0], outerChain)
	f.ReplaceAllUses(bodyArgs[1], outerStream)

	term := f.Terminator(body)
	finalChain := f.Operand(term, 0)
	f.EraseOp(term)

	// Splice the body into the parent at the region's position, in order.
	parent := f.OpBlock(region)
	f.MoveOpRange(body, 0, f.NumBlockOps(body), parent, f.OpIndex(region))

	// The region's token becomes a fresh pack of the body's final chain
	// with the outer stream.
	repack := f.Before(region).Pack(finalChain, outerStream)
	f.ReplaceAllUses(f.Result(region), f.Result(repack))
	f.EraseOp(region)
	f.RemoveBlock(body)
	f.EraseOp(pack)

	klog.V(2).Infof("unwrapped async.execute #%d in %q", region, f.Name())
	return nil
}
