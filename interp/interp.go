// Package interp executes fully lowered functions against the hostrt
// runtime.
//
// The interpreter walks the entry block in program order from a single
// goroutine, mapping each concrete op kind onto the hostrt surface. Device
// kernels (operands starting with chain, stream after lowering) are enqueued
// on their stream and run concurrently with the host walk; everything else
// runs inline. Run returns once the function's result chain resolves.
//
// Functions still holding regions, awaits, packs or any token value are
// rejected: executing a half-lowered function would mix the host and device
// ordering models.
package interp

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/hostrt"
	"github.com/gomlx/asyncflow/ir"
	"github.com/gomlx/asyncflow/lower"
)

// Run executes f. args supply values for the function parameters after the
// leading (chain, stream) pair, which Run binds to a resolved chain and to
// the default stream of a fresh device context. Run blocks until the
// function's returned chain resolves, or ctx is cancelled.
func Run(ctx context.Context, f *ir.Func, reg *Registry, args ...any) error {
	if err := checkRunnable(f, len(args)); err != nil {
		return err
	}
	device := hostrt.NewContext()
	defer device.Close()

	entryArgs := f.BlockArgs(f.Entry())
	env := make(map[ir.ValueID]any, len(entryArgs))
	env[entryArgs[0]] = hostrt.ResolvedChain()
	env[entryArgs[1]] = device.NewStream()
	for i, arg := range args {
		env[entryArgs[i+2]] = arg
	}

	klog.V(1).Infof("interp: running %q (%d ops)", f.Name(), f.NumBlockOps(f.Entry()))
	for _, op := range f.BlockOps(f.Entry()) {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "running %q", f.Name())
		}
		final, err := step(ctx, f, op, env, reg)
		if err != nil {
			return errors.WithMessagef(err, "running %q", f.Name())
		}
		if final != nil {
			return waitChain(ctx, final)
		}
	}
	return errors.Errorf("function %q finished without a terminator", f.Name())
}

// step executes one op. It returns the function's final chain when op is the
// terminator.
func step(ctx context.Context, f *ir.Func, op ir.OpID, env map[ir.ValueID]any, reg *Registry) (*hostrt.Chain, error) {
	operand := func(i int) any { return env[f.Operand(op, i)] }
	switch f.OpKindOf(op) {
	case ir.OpNewChain:
		env[f.Result(op)] = hostrt.ResolvedChain()
	case ir.OpStreamGetContext:
		env[f.Result(op)] = operand(0).(*hostrt.Stream).Context()
	case ir.OpStreamCreate:
		env[f.Result(op)] = operand(0).(*hostrt.Context).NewStream()
	case ir.OpEventCreate:
		env[f.Result(op)] = operand(0).(*hostrt.Context).NewEvent()
	case ir.OpEventRecord:
		if err := waitChain(ctx, operand(2).(*hostrt.Chain)); err != nil {
			return nil, err
		}
		operand(0).(*hostrt.Event).RecordOn(operand(1).(*hostrt.Stream))
		// The result chain orders the issue of the record, not its
		// completion on the stream.
		env[f.Result(op)] = hostrt.ResolvedChain()
	case ir.OpStreamWait:
		if err := waitChain(ctx, operand(2).(*hostrt.Chain)); err != nil {
			return nil, err
		}
		operand(0).(*hostrt.Stream).WaitEvent(operand(1).(*hostrt.Event))
		env[f.Result(op)] = hostrt.ResolvedChain()
	case ir.OpKernel:
		return nil, dispatchKernel(ctx, f, op, env, reg)
	case ir.OpYield:
		// Completion was already published as recorded events.
	case ir.OpReturn:
		return env[f.Operand(op, 0)].(*hostrt.Chain), nil
	default:
		return nil, errors.Errorf("op #%d (%s) is not executable", op, f.OpKindOf(op))
	}
	return nil, nil
}

// dispatchKernel runs a kernel. Device form, recognized by its leading
// (chain, stream) operands and chain result, is enqueued on its stream; host
// form runs inline.
func dispatchKernel(ctx context.Context, f *ir.Func, op ir.OpID, env map[ir.ValueID]any, reg *Registry) error {
	name := f.OpName(op)
	fn, found := reg.Lookup(name)
	if !found {
		return errors.Errorf("kernel %q is not registered", name)
	}
	operands := f.Operands(op)
	if deviceForm(f, op) {
		inChain := env[operands[0]].(*hostrt.Chain)
		stream := env[operands[1]].(*hostrt.Stream)
		data := resolveData(env, operands[2:])
		outChain := hostrt.NewChain()
		env[f.Result(op)] = outChain
		if err := waitChain(ctx, inChain); err != nil {
			return err
		}
		klog.V(2).Infof("interp: kernel %q enqueued on stream %s", name, stream.ID())
		stream.Enqueue(func() {
			fn(ctx, data)
			outChain.Resolve()
		})
		return nil
	}
	klog.V(2).Infof("interp: kernel %q on host", name)
	fn(ctx, resolveData(env, operands))
	return nil
}

// deviceForm reports whether a kernel follows the lowered device convention.
func deviceForm(f *ir.Func, op ir.OpID) bool {
	operands := f.Operands(op)
	return len(operands) >= 2 &&
		f.ValueType(operands[0]) == ir.TypeChain &&
		f.ValueType(operands[1]) == ir.TypeStream &&
		f.Result(op) != ir.InvalidValue &&
		f.ValueType(f.Result(op)) == ir.TypeChain
}

func resolveData(env map[ir.ValueID]any, operands []ir.ValueID) []any {
	data := make([]any, len(operands))
	for i, v := range operands {
		data[i] = env[v]
	}
	return data
}

func waitChain(ctx context.Context, chain *hostrt.Chain) error {
	select {
	case <-chain.WaitChan():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting on chain")
	}
}

// checkRunnable rejects functions the interpreter cannot execute.
func checkRunnable(f *ir.Func, numArgs int) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if !lower.IsNormalized(f) {
		return errors.Errorf("function %q is not in normalized form", f.Name())
	}
	entryArgs := f.BlockArgs(f.Entry())
	if numArgs != len(entryArgs)-2 {
		return errors.Errorf("function %q takes %d arguments beyond (chain, stream), got %d",
			f.Name(), len(entryArgs)-2, numArgs)
	}
	for _, op := range f.BlockOps(f.Entry()) {
		switch kind := f.OpKindOf(op); kind {
		case ir.OpAsyncExecute, ir.OpAwait, ir.OpPack:
			return errors.Errorf("function %q still holds a %s op; lower it first", f.Name(), kind)
		case ir.OpKernel:
			if deviceForm(f, op) {
				if len(f.Results(op)) > 1 {
					return errors.Errorf("kernel %q has data results; the interpreter only threads its chain", f.OpName(op))
				}
			} else if len(f.Results(op)) > 0 {
				return errors.Errorf("host kernel %q has results; the interpreter dispatches kernels by side effect only", f.OpName(op))
			}
		}
		for _, v := range f.Operands(op) {
			if f.ValueType(v) == ir.TypeToken {
				return errors.Errorf("function %q still consumes a token; lower it first", f.Name())
			}
		}
	}
	return nil
}
