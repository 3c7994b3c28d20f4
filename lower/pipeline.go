package lower

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// GroupAsyncRegions is the first lowering phase: it stages WrapAsyncRegions
// in a transaction and commits. A function without any device-schedulable
// run is left untouched and is not an error.
func GroupAsyncRegions(f *ir.Func, target Target) error {
	tx := f.Stage()
	err := WrapAsyncRegions(f, target)
	if err != nil && !IsMatchFailure(err) {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

// Flatten is the second lowering phase: one coordinated pass turning a
// grouped function into a flat stream/event schedule.
//
// It normalizes the signature, then drives the unwrap, wait and yield
// rewrites from a worklist until a full sweep makes no progress. Match
// failures only defer an op: wait synthesis may first have to materialize
// the pack an unwrap is waiting on, so deferred ops are retried every sweep.
//
// Flatten stages everything in one transaction. If the function ends up
// anything short of fully lowered - not normalized, or with a region, await,
// pack or token surviving - the transaction rolls back and a hard error is
// returned: a partially lowered function mixes host-chain ordering and
// stream ordering inconsistently and must not reach execution.
func Flatten(f *ir.Func) error {
	tx := f.Stage()
	if err := flatten(f); err != nil {
		tx.Rollback()
		return errors.WithMessagef(err, "flattening %q", f.Name())
	}
	tx.Commit()
	return nil
}

func flatten(f *ir.Func) error {
	if err := RewriteSignature(f); err != nil {
		if !IsMatchFailure(err) {
			return err
		}
		klog.V(2).Infof("signature of %q left as-is: %v", f.Name(), err)
	}

	for sweep := 0; ; sweep++ {
		progress := false
		for _, op := range rewritable(f) {
			if f.OpErased(op) {
				continue
			}
			var err error
			switch f.OpKindOf(op) {
			case ir.OpAsyncExecute:
				err = UnwrapAsyncRegion(f, op)
			case ir.OpAwait:
				err = SynthesizeWait(f, op)
			case ir.OpYield:
				err = SynthesizeYield(f, op)
			}
			if err == nil {
				progress = true
				continue
			}
			if !IsMatchFailure(err) {
				return err
			}
			klog.V(2).Infof("sweep %d: deferred: %v", sweep, err)
		}
		if !progress {
			break
		}
	}

	sweepDeadPacks(f)
	return checkFullyLowered(f)
}

// rewritable collects the ops the flattening sweep may still convert, in
// program order, region bodies included.
func rewritable(f *ir.Func) []ir.OpID {
	var out []ir.OpID
	var walk func(b ir.BlockID)
	walk = func(b ir.BlockID) {
		for _, op := range f.BlockOps(b) {
			switch f.OpKindOf(op) {
			case ir.OpAsyncExecute:
				walk(f.OpBody(op))
				out = append(out, op)
			case ir.OpAwait, ir.OpYield:
				out = append(out, op)
			}
		}
	}
	walk(f.Entry())
	return out
}

// sweepDeadPacks erases packs whose token is no longer referenced. Unwrap
// repacks a region's final chain unconditionally; when nothing downstream
// consumed the region's token, that pack is dead.
func sweepDeadPacks(f *ir.Func) {
	for {
		erased := false
		for _, op := range f.BlockOps(f.Entry()) {
			if f.OpKindOf(op) == ir.OpPack && len(f.UsesOf(f.Result(op))) == 0 {
				f.EraseOp(op)
				erased = true
			}
		}
		if !erased {
			return
		}
	}
}

// checkFullyLowered escalates any leftover abstraction to a hard error.
// Yield ops may survive, but only with their tokens already replaced by
// events; regions, awaits and packs must be gone entirely.
func checkFullyLowered(f *ir.Func) error {
	if !IsNormalized(f) {
		return errors.Errorf("function %q did not reach the normalized (chain, stream) -> chain shape", f.Name())
	}
	for _, op := range f.BlockOps(f.Entry()) {
		switch kind := f.OpKindOf(op); kind {
		case ir.OpAsyncExecute, ir.OpAwait, ir.OpPack:
			return errors.Errorf("function %q still holds a %s op after flattening", f.Name(), kind)
		}
		for _, operand := range f.Operands(op) {
			if f.ValueType(operand) == ir.TypeToken {
				return errors.Errorf("function %q: %s op still consumes a token after flattening", f.Name(), f.OpKindOf(op))
			}
		}
	}
	return nil
}
