package lower

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// SynthesizeWait expands an await node into concrete stream and event
// instructions, using the enclosing function's normalized (chain, stream)
// parameters as the default context.
//
// Operands partition into event operands and at most one packed token; the
// token, when present, overrides the default (chain, stream). If the node
// declares a token result it forks a new concurrent scope: a child stream is
// created on the current stream's context, and when no event operand
// supplies an ordering edge, one is synthesized by recording a fresh event
// on the current stream first, so a fork is never unsynchronized against its
// parent. Every event then gets one stream-wait on the resulting stream,
// with a chain threaded through the emission to keep the host-side
// bookkeeping ordered.
//
// Forking nodes are replaced by a pack of the final (chain, stream);
// non-forking nodes advance the function's returned chain and disappear.
func SynthesizeWait(f *ir.Func, op ir.OpID) error {
	if f.OpKindOf(op) != ir.OpAwait {
		return matchFailuref("op #%d is %s, not await", op, f.OpKindOf(op))
	}
	if !IsNormalized(f) {
		return matchFailuref("await #%d: function %q lacks (chain, stream) parameters and chain result", op, f.Name())
	}
	entryArgs := f.BlockArgs(f.Entry())
	chain, stream := entryArgs[0], entryArgs[1]

	// Partition operands into events and at most one packed token.
	var events []ir.ValueID
	tokenPack := ir.InvalidOp
	for _, operand := range f.Operands(op) {
		if f.ValueType(operand) == ir.TypeEvent {
			events = append(events, operand)
			continue
		}
		pack := definingPack(f, operand)
		if pack == ir.InvalidOp {
			return matchFailuref("await #%d: operand %%%d is neither event nor packed token", op, operand)
		}
		if tokenPack != ir.InvalidOp {
			return matchFailuref("await #%d: more than one token operand", op)
		}
		tokenPack = pack
		chain = f.Operand(pack, 0)
		stream = f.Operand(pack, 1)
	}

	fork := f.Result(op) != ir.InvalidValue
	at := f.Before(op)

	if fork {
		// Fork a new scope: fresh chain, child stream on the same
		// context. Without an event operand the fork would race its
		// parent, so record an event on the current stream first.
		chain = f.Result(at.NewChain())
		context := f.Result(at.StreamGetContext(stream))
		if len(events) == 0 {
			event := f.Result(at.EventCreate(context))
			chain = f.Result(at.EventRecord(event, stream, chain))
			events = append(events, event)
		}
		stream = f.Result(at.StreamCreate(context))
	}

	// One stream-wait per event. The waits order the stream; the threaded
	// chain orders the emission itself.
	for _, event := range events {
		chain = f.Result(at.StreamWait(stream, event, chain))
	}

	if fork {
		pack := at.Pack(chain, stream)
		f.ReplaceAllUses(f.Result(op), f.Result(pack))
	} else {
		f.SetOperands(f.Terminator(f.Entry()), chain)
	}
	f.EraseOp(op)
	if tokenPack != ir.InvalidOp && len(f.UsesOf(f.Result(tokenPack))) == 0 {
		f.EraseOp(tokenPack)
	}

	klog.V(2).Infof("synthesized wait for await #%d in %q: %d events, fork=%t", op, f.Name(), len(events), fork)
	return nil
}
