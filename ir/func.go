package ir

import "slices"

// opData is the arena entry for one operation.
type opData struct {
	kind     OpKind
	name     string // kernel name, empty for other kinds
	operands []ValueID
	results  []ValueID
	block    BlockID // owner block, InvalidBlock once erased
	body     BlockID // body block for OpAsyncExecute, InvalidBlock otherwise
	erased   bool
}

// valueData is the arena entry for one value. A value is either the result
// of an operation (def != InvalidOp) or a block argument.
type valueData struct {
	typ    Type
	def    OpID    // defining op, InvalidOp for block arguments
	block  BlockID // owner block for block arguments
	argIdx int
}

// blockData is the arena entry for one block. Operation order within ops is
// program order and is the only order the pipeline ever relies on.
type blockData struct {
	args   []ValueID
	ops    []OpID
	parent OpID // region op owning this body, InvalidOp for the entry block
	dead   bool
}

// Func is a single function: a name, result types, an entry block and the
// arenas owning every op, value and block reachable from it.
//
// Func is not safe for concurrent mutation. The lowering pipeline edits one
// function per transaction from a single goroutine.
type Func struct {
	name    string
	results []Type
	entry   BlockID

	ops    []opData
	values []valueData
	blocks []blockData
}

// NewFunc creates a function with an entry block carrying one argument per
// paramType, and no declared results.
func NewFunc(name string, paramTypes ...Type) *Func {
	f := &Func{name: name, entry: InvalidBlock}
	f.entry = f.NewBlock(InvalidOp, paramTypes...)
	return f
}

// Name returns the function name.
func (f *Func) Name() string { return f.name }

// Entry returns the entry block.
func (f *Func) Entry() BlockID { return f.entry }

// SetEntry makes b the entry block. The previous entry block must have been
// removed or merged by the caller.
func (f *Func) SetEntry(b BlockID) {
	f.checkBlock(b)
	f.entry = b
}

// ResultTypes returns a copy of the declared result types.
func (f *Func) ResultTypes() []Type { return slices.Clone(f.results) }

// SetResultTypes replaces the declared result types.
func (f *Func) SetResultTypes(types ...Type) {
	f.results = slices.Clone(types)
}

// NewBlock creates a block with one argument per argType. parent is the
// region op owning the block, or InvalidOp for a top-level block.
func (f *Func) NewBlock(parent OpID, argTypes ...Type) BlockID {
	b := BlockID(len(f.blocks))
	f.blocks = append(f.blocks, blockData{parent: parent})
	for _, t := range argTypes {
		f.AddBlockArg(b, t)
	}
	return b
}

// AddBlockArg appends an argument of type t to block b and returns its value.
func (f *Func) AddBlockArg(b BlockID, t Type) ValueID {
	f.checkBlock(b)
	checkf(t != TypeInvalid, "block argument of invalid type")
	v := ValueID(len(f.values))
	f.values = append(f.values, valueData{
		typ:    t,
		def:    InvalidOp,
		block:  b,
		argIdx: len(f.blocks[b].args),
	})
	f.blocks[b].args = append(f.blocks[b].args, v)
	return v
}

// BlockArgs returns a copy of b's argument values.
func (f *Func) BlockArgs(b BlockID) []ValueID {
	f.checkBlock(b)
	return slices.Clone(f.blocks[b].args)
}

// BlockOps returns a copy of the operations of b, in program order. The copy
// stays valid while the caller splices or erases ops.
func (f *Func) BlockOps(b BlockID) []OpID {
	f.checkBlock(b)
	return slices.Clone(f.blocks[b].ops)
}

// NumBlockOps returns the number of operations in b.
func (f *Func) NumBlockOps(b BlockID) int {
	f.checkBlock(b)
	return len(f.blocks[b].ops)
}

// BlockParent returns the region op owning b, or InvalidOp for a top-level
// block.
func (f *Func) BlockParent(b BlockID) OpID {
	f.checkBlock(b)
	return f.blocks[b].parent
}

// RemoveBlock marks an emptied block dead. The block must hold no
// operations; its arguments must no longer be referenced.
func (f *Func) RemoveBlock(b BlockID) {
	f.checkBlock(b)
	checkf(len(f.blocks[b].ops) == 0, "RemoveBlock(%d): block still holds %d ops", b, len(f.blocks[b].ops))
	for _, arg := range f.blocks[b].args {
		checkf(len(f.UsesOf(arg)) == 0, "RemoveBlock(%d): argument %%%d still in use", b, arg)
	}
	f.blocks[b].dead = true
}

// Terminator returns the last op of b if it is a return, else InvalidOp.
func (f *Func) Terminator(b BlockID) OpID {
	f.checkBlock(b)
	ops := f.blocks[b].ops
	if len(ops) == 0 {
		return InvalidOp
	}
	last := ops[len(ops)-1]
	if f.ops[last].kind != OpReturn {
		return InvalidOp
	}
	return last
}

// OpKindOf returns the kind of op.
func (f *Func) OpKindOf(op OpID) OpKind {
	f.checkOp(op)
	return f.ops[op].kind
}

// OpName returns the kernel name of op, empty for non-kernel kinds.
func (f *Func) OpName(op OpID) string {
	f.checkOp(op)
	return f.ops[op].name
}

// OpBlock returns the block holding op.
func (f *Func) OpBlock(op OpID) BlockID {
	f.checkOp(op)
	return f.ops[op].block
}

// OpBody returns the body block of an async-execute op, InvalidBlock for any
// other kind.
func (f *Func) OpBody(op OpID) BlockID {
	f.checkOp(op)
	return f.ops[op].body
}

// OpErased reports whether op has been erased.
func (f *Func) OpErased(op OpID) bool {
	checkf(op >= 0 && int(op) < len(f.ops), "op handle %d out of range", op)
	return f.ops[op].erased
}

// Operands returns a copy of op's operands.
func (f *Func) Operands(op OpID) []ValueID {
	f.checkOp(op)
	return slices.Clone(f.ops[op].operands)
}

// NumOperands returns the number of operands of op.
func (f *Func) NumOperands(op OpID) int {
	f.checkOp(op)
	return len(f.ops[op].operands)
}

// Operand returns operand i of op.
func (f *Func) Operand(op OpID, i int) ValueID {
	f.checkOp(op)
	checkf(i >= 0 && i < len(f.ops[op].operands), "operand index %d out of range for %s", i, f.ops[op].kind)
	return f.ops[op].operands[i]
}

// SetOperand replaces operand i of op with v.
func (f *Func) SetOperand(op OpID, i int, v ValueID) {
	f.checkOp(op)
	f.checkValue(v)
	checkf(i >= 0 && i < len(f.ops[op].operands), "operand index %d out of range for %s", i, f.ops[op].kind)
	f.ops[op].operands[i] = v
}

// SetOperands replaces all operands of op.
func (f *Func) SetOperands(op OpID, operands ...ValueID) {
	f.checkOp(op)
	for _, v := range operands {
		f.checkValue(v)
	}
	f.ops[op].operands = slices.Clone(operands)
}

// Results returns a copy of op's result values.
func (f *Func) Results(op OpID) []ValueID {
	f.checkOp(op)
	return slices.Clone(f.ops[op].results)
}

// Result returns op's single result, or InvalidValue if it has none.
func (f *Func) Result(op OpID) ValueID {
	f.checkOp(op)
	if len(f.ops[op].results) == 0 {
		return InvalidValue
	}
	return f.ops[op].results[0]
}

// ValueType returns the type of v.
func (f *Func) ValueType(v ValueID) Type {
	f.checkValue(v)
	return f.values[v].typ
}

// DefOp returns the op defining v, or InvalidOp if v is a block argument.
func (f *Func) DefOp(v ValueID) OpID {
	f.checkValue(v)
	def := f.values[v].def
	if def != InvalidOp && f.ops[def].erased {
		return InvalidOp
	}
	return def
}

// IsBlockArg reports whether v is a block argument, and of which block.
func (f *Func) IsBlockArg(v ValueID) (BlockID, bool) {
	f.checkValue(v)
	if f.values[v].def != InvalidOp {
		return InvalidBlock, false
	}
	return f.values[v].block, true
}

// UsesOf returns every live op that has v among its operands, in arena order.
func (f *Func) UsesOf(v ValueID) []OpID {
	f.checkValue(v)
	var uses []OpID
	for id := range f.ops {
		if f.ops[id].erased {
			continue
		}
		if slices.Contains(f.ops[id].operands, v) {
			uses = append(uses, OpID(id))
		}
	}
	return uses
}

// ReplaceAllUses rewrites every live operand reference of old to new. The
// two values must have the same type.
func (f *Func) ReplaceAllUses(old, new ValueID) {
	f.checkValue(old)
	f.checkValue(new)
	checkf(f.values[old].typ == f.values[new].typ,
		"ReplaceAllUses: %s value replaced by %s value", f.values[old].typ, f.values[new].typ)
	for id := range f.ops {
		if f.ops[id].erased {
			continue
		}
		for i, operand := range f.ops[id].operands {
			if operand == old {
				f.ops[id].operands[i] = new
			}
		}
	}
}

// EraseOp removes op from its block and marks it erased. Its results must no
// longer be referenced by live ops.
func (f *Func) EraseOp(op OpID) {
	f.checkOp(op)
	for _, result := range f.ops[op].results {
		if uses := f.UsesOf(result); len(uses) > 0 {
			checkf(false, "EraseOp(%s): result %%%d still used by %d ops", f.ops[op].kind, result, len(uses))
		}
	}
	b := f.ops[op].block
	f.blocks[b].ops = slices.DeleteFunc(f.blocks[b].ops, func(o OpID) bool { return o == op })
	f.ops[op].erased = true
	f.ops[op].block = InvalidBlock
}

// OpIndex returns op's position within its block.
func (f *Func) OpIndex(op OpID) int {
	f.checkOp(op)
	idx := slices.Index(f.blocks[f.ops[op].block].ops, op)
	checkf(idx >= 0, "op %d missing from its block", op)
	return idx
}

// MoveOpRange splices ops [from, to) of src into dst at position at,
// preserving their relative order. src and dst must differ.
func (f *Func) MoveOpRange(src BlockID, from, to int, dst BlockID, at int) {
	f.checkBlock(src)
	f.checkBlock(dst)
	checkf(src != dst, "MoveOpRange within one block")
	srcOps := f.blocks[src].ops
	checkf(from >= 0 && to >= from && to <= len(srcOps),
		"MoveOpRange: range [%d, %d) out of bounds (%d ops)", from, to, len(srcOps))
	checkf(at >= 0 && at <= len(f.blocks[dst].ops),
		"MoveOpRange: position %d out of bounds (%d ops)", at, len(f.blocks[dst].ops))
	moved := slices.Clone(srcOps[from:to])
	f.blocks[src].ops = slices.Delete(srcOps, from, to)
	f.blocks[dst].ops = slices.Insert(f.blocks[dst].ops, at, moved...)
	for _, op := range moved {
		f.ops[op].block = dst
	}
}

// newOp allocates an op and its result values, and inserts it in block b at
// position at.
func (f *Func) newOp(b BlockID, at int, kind OpKind, name string, operands []ValueID, resultTypes []Type) OpID {
	f.checkBlock(b)
	checkf(at >= 0 && at <= len(f.blocks[b].ops), "insert position %d out of bounds (%d ops)", at, len(f.blocks[b].ops))
	for _, v := range operands {
		f.checkValue(v)
	}
	op := OpID(len(f.ops))
	f.ops = append(f.ops, opData{
		kind:     kind,
		name:     name,
		operands: slices.Clone(operands),
		block:    b,
		body:     InvalidBlock,
	})
	for _, t := range resultTypes {
		v := ValueID(len(f.values))
		f.values = append(f.values, valueData{typ: t, def: op, block: InvalidBlock})
		f.ops[op].results = append(f.ops[op].results, v)
	}
	f.blocks[b].ops = slices.Insert(f.blocks[b].ops, at, op)
	return op
}

func (f *Func) checkOp(op OpID) {
	checkf(op >= 0 && int(op) < len(f.ops), "op handle %d out of range", op)
	checkf(!f.ops[op].erased, "op handle %d already erased", op)
}

func (f *Func) checkValue(v ValueID) {
	checkf(v >= 0 && int(v) < len(f.values), "value handle %d out of range", v)
}

func (f *Func) checkBlock(b BlockID) {
	checkf(b >= 0 && int(b) < len(f.blocks), "block handle %d out of range", b)
	checkf(!f.blocks[b].dead, "block handle %d already removed", b)
}

// clone returns a deep copy of f sharing no mutable state with it.
func (f *Func) clone() *Func {
	c := &Func{
		name:    f.name,
		results: slices.Clone(f.results),
		entry:   f.entry,
		ops:     slices.Clone(f.ops),
		values:  slices.Clone(f.values),
		blocks:  slices.Clone(f.blocks),
	}
	for i := range c.ops {
		c.ops[i].operands = slices.Clone(c.ops[i].operands)
		c.ops[i].results = slices.Clone(c.ops[i].results)
	}
	for i := range c.blocks {
		c.blocks[i].args = slices.Clone(c.blocks[i].args)
		c.blocks[i].ops = slices.Clone(c.blocks[i].ops)
	}
	return c
}
