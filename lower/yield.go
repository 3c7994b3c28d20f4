package lower

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// SynthesizeYield converts a publish-completion node: every packed token
// operand is replaced in place by an event recorded on the token's stream
// after the token's chain, so consumers outside the producer's scope can
// observe completion without blocking a host thread. Non-token operands are
// left untouched, and the consumed packs are erased.
//
// Fails with a match failure only when no operand was a packed token.
func SynthesizeYield(f *ir.Func, op ir.OpID) error {
	if f.OpKindOf(op) != ir.OpYield {
		return matchFailuref("op #%d is %s, not yield", op, f.OpKindOf(op))
	}
	replaced := 0
	for i, operand := range f.Operands(op) {
		pack := definingPack(f, operand)
		if pack == ir.InvalidOp {
			continue
		}
		chain := f.Operand(pack, 0)
		stream := f.Operand(pack, 1)

		at := f.Before(op)
		context := f.Result(at.StreamGetContext(stream))
		event := f.Result(at.EventCreate(context))
		at.EventRecord(event, stream, chain)

		f.SetOperand(op, i, event)
		if len(f.UsesOf(operand)) == 0 {
			f.EraseOp(pack)
		}
		replaced++
	}
	if replaced == 0 {
		return matchFailuref("yield #%d: no packed token operand", op)
	}
	klog.V(2).Infof("synthesized %d events for yield #%d in %q", replaced, op, f.Name())
	return nil
}
