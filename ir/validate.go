package ir

import (
	"github.com/pkg/errors"

	"github.com/gomlx/asyncflow/types"
)

// Validate checks structural and type well-formedness: operand arity and
// types per kind, exactly one terminator per block placed last, async-execute
// bodies with (chain, stream) arguments, and no live reference to an erased
// op's results. It returns the first violation found.
func (f *Func) Validate() error {
	seen := types.MakeSet[BlockID]()
	if err := f.validateBlock(f.entry, seen); err != nil {
		return errors.WithMessagef(err, "function %q", f.name)
	}
	for id := range f.ops {
		op := OpID(id)
		if f.ops[op].erased {
			continue
		}
		if !seen.Has(f.ops[op].block) {
			return errors.Errorf("function %q: op #%d (%s) lives in unreachable block %d",
				f.name, op, f.ops[op].kind, f.ops[op].block)
		}
	}
	return nil
}

func (f *Func) validateBlock(b BlockID, seen types.Set[BlockID]) error {
	if b < 0 || int(b) >= len(f.blocks) || f.blocks[b].dead {
		return errors.Errorf("bad block handle %d", b)
	}
	seen.Insert(b)
	ops := f.blocks[b].ops
	for i, op := range ops {
		if f.ops[op].erased {
			return errors.Errorf("block %d holds erased op #%d", b, op)
		}
		if f.ops[op].block != b {
			return errors.Errorf("op #%d claims block %d but is listed in block %d", op, f.ops[op].block, b)
		}
		isTerm := f.ops[op].kind == OpReturn
		if isTerm != (i == len(ops)-1) {
			return errors.Errorf("block %d: %s at position %d of %d", b, f.ops[op].kind, i, len(ops))
		}
		if err := f.validateOp(op, seen); err != nil {
			return err
		}
	}
	if len(ops) == 0 || f.ops[ops[len(ops)-1]].kind != OpReturn {
		return errors.Errorf("block %d has no terminator", b)
	}
	return nil
}

func (f *Func) validateOp(op OpID, seen types.Set[BlockID]) error {
	data := &f.ops[op]
	for _, v := range data.operands {
		if v < 0 || int(v) >= len(f.values) {
			return errors.Errorf("op #%d (%s): bad operand handle %d", op, data.kind, v)
		}
		if def := f.values[v].def; def != InvalidOp && f.ops[def].erased {
			return errors.Errorf("op #%d (%s): operand %%%d defined by erased op #%d", op, data.kind, v, def)
		}
	}
	wantOperands := func(types ...Type) error {
		if len(data.operands) != len(types) {
			return errors.Errorf("op #%d (%s): %d operands, want %d", op, data.kind, len(data.operands), len(types))
		}
		for i, t := range types {
			if got := f.values[data.operands[i]].typ; got != t {
				return errors.Errorf("op #%d (%s): operand %d is %s, want %s", op, data.kind, i, got, t)
			}
		}
		return nil
	}
	switch data.kind {
	case OpPack:
		if err := wantOperands(TypeChain, TypeStream); err != nil {
			return err
		}
	case OpNewChain:
		if err := wantOperands(); err != nil {
			return err
		}
	case OpStreamGetContext:
		if err := wantOperands(TypeStream); err != nil {
			return err
		}
	case OpStreamCreate, OpEventCreate:
		if err := wantOperands(TypeContext); err != nil {
			return err
		}
	case OpEventRecord:
		if err := wantOperands(TypeEvent, TypeStream, TypeChain); err != nil {
			return err
		}
	case OpStreamWait:
		if err := wantOperands(TypeStream, TypeEvent, TypeChain); err != nil {
			return err
		}
	case OpAwait:
		for i, v := range data.operands {
			if t := f.values[v].typ; t != TypeEvent && t != TypeToken {
				return errors.Errorf("op #%d (await): operand %d is %s, want event or token", op, i, t)
			}
		}
	case OpAsyncExecute:
		if len(data.operands) > 1 {
			return errors.Errorf("op #%d (async.execute): %d operands, want at most one token", op, len(data.operands))
		}
		if len(data.operands) == 1 && f.values[data.operands[0]].typ != TypeToken {
			return errors.Errorf("op #%d (async.execute): operand is %s, want token", op, f.values[data.operands[0]].typ)
		}
		body := data.body
		if body == InvalidBlock {
			return errors.Errorf("op #%d (async.execute): missing body", op)
		}
		args := f.blocks[body].args
		if len(args) != 2 || f.values[args[0]].typ != TypeChain || f.values[args[1]].typ != TypeStream {
			return errors.Errorf("op #%d (async.execute): body arguments are not (chain, stream)", op)
		}
		term := f.Terminator(body)
		if term == InvalidOp || f.NumOperands(term) != 1 || f.values[f.ops[term].operands[0]].typ != TypeChain {
			return errors.Errorf("op #%d (async.execute): body terminator does not return one chain", op)
		}
		if err := f.validateBlock(body, seen); err != nil {
			return err
		}
	case OpKernel, OpYield, OpReturn:
		// Operand shapes are free-form.
	default:
		return errors.Errorf("op #%d has invalid kind", op)
	}
	return nil
}
