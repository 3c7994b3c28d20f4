package ir

// Cursor is an insertion point inside a block. Every emission helper inserts
// at the cursor and advances it, so a sequence of calls lays ops down in
// program order.
//
// Emission helpers check operand types eagerly and panic on mismatch: a
// wrongly-typed operand is a bug in the rewrite emitting it, not an input
// condition.
type Cursor struct {
	f     *Func
	block BlockID
	index int
}

// Before returns a cursor positioned immediately before op.
func (f *Func) Before(op OpID) *Cursor {
	f.checkOp(op)
	return &Cursor{f: f, block: f.ops[op].block, index: f.OpIndex(op)}
}

// AtEnd returns a cursor positioned after the last op of b.
func (f *Func) AtEnd(b BlockID) *Cursor {
	f.checkBlock(b)
	return &Cursor{f: f, block: b, index: len(f.blocks[b].ops)}
}

// AtStart returns a cursor positioned before the first op of b.
func (f *Func) AtStart(b BlockID) *Cursor {
	f.checkBlock(b)
	return &Cursor{f: f, block: b, index: 0}
}

// Block returns the block the cursor points into.
func (c *Cursor) Block() BlockID { return c.block }

func (c *Cursor) emit(kind OpKind, name string, operands []ValueID, resultTypes ...Type) OpID {
	op := c.f.newOp(c.block, c.index, kind, name, operands, resultTypes)
	c.index++
	return op
}

func (c *Cursor) wantType(kind OpKind, v ValueID, t Type) {
	checkf(c.f.ValueType(v) == t, "%s: operand %%%d is %s, want %s", kind, v, c.f.ValueType(v), t)
}

// Kernel emits an opaque named operation with the given operands and result
// types.
func (c *Cursor) Kernel(name string, operands []ValueID, resultTypes ...Type) OpID {
	checkf(name != "", "kernel without a name")
	return c.emit(OpKernel, name, operands, resultTypes...)
}

// Pack emits the op tagging (chain, stream) as a token.
func (c *Cursor) Pack(chain, stream ValueID) OpID {
	c.wantType(OpPack, chain, TypeChain)
	c.wantType(OpPack, stream, TypeStream)
	return c.emit(OpPack, "", []ValueID{chain, stream}, TypeToken)
}

// AsyncExecute emits an async-execute op with an empty body block carrying
// (chain, stream) arguments and a terminator returning the chain argument.
// The token operand starts unset; wire it later with SetOperands.
func (c *Cursor) AsyncExecute() OpID {
	op := c.emit(OpAsyncExecute, "", nil, TypeToken)
	body := c.f.NewBlock(op, TypeChain, TypeStream)
	c.f.ops[op].body = body
	c.f.AtEnd(body).Return(c.f.blocks[body].args[0])
	return op
}

// Return emits a block terminator with the given operands.
func (c *Cursor) Return(operands ...ValueID) OpID {
	return c.emit(OpReturn, "", operands)
}

// Await emits a wait on the given event or token operands. With fork set the
// op declares a token result, requesting a new concurrent scope.
func (c *Cursor) Await(operands []ValueID, fork bool) OpID {
	for _, v := range operands {
		t := c.f.ValueType(v)
		checkf(t == TypeEvent || t == TypeToken, "await: operand %%%d is %s, want event or token", v, t)
	}
	if fork {
		return c.emit(OpAwait, "", operands, TypeToken)
	}
	return c.emit(OpAwait, "", operands)
}

// Yield emits a publish-completion op over the given operands.
func (c *Cursor) Yield(operands ...ValueID) OpID {
	return c.emit(OpYield, "", operands)
}

// NewChain emits the creation of a fresh chain.
func (c *Cursor) NewChain() OpID {
	return c.emit(OpNewChain, "", nil, TypeChain)
}

// StreamGetContext emits the lookup of the context owning stream.
func (c *Cursor) StreamGetContext(stream ValueID) OpID {
	c.wantType(OpStreamGetContext, stream, TypeStream)
	return c.emit(OpStreamGetContext, "", []ValueID{stream}, TypeContext)
}

// StreamCreate emits the creation of a new stream on context.
func (c *Cursor) StreamCreate(context ValueID) OpID {
	c.wantType(OpStreamCreate, context, TypeContext)
	return c.emit(OpStreamCreate, "", []ValueID{context}, TypeStream)
}

// EventCreate emits the creation of a new event on context.
func (c *Cursor) EventCreate(context ValueID) OpID {
	c.wantType(OpEventCreate, context, TypeContext)
	return c.emit(OpEventCreate, "", []ValueID{context}, TypeEvent)
}

// EventRecord emits the recording of event on stream, ordered after chain.
// The result chain completes once the record is issued.
func (c *Cursor) EventRecord(event, stream, chain ValueID) OpID {
	c.wantType(OpEventRecord, event, TypeEvent)
	c.wantType(OpEventRecord, stream, TypeStream)
	c.wantType(OpEventRecord, chain, TypeChain)
	return c.emit(OpEventRecord, "", []ValueID{event, stream, chain}, TypeChain)
}

// StreamWait emits a wait of stream on event, ordered after chain. The
// result chain completes once the wait is issued.
func (c *Cursor) StreamWait(stream, event, chain ValueID) OpID {
	c.wantType(OpStreamWait, stream, TypeStream)
	c.wantType(OpStreamWait, event, TypeEvent)
	c.wantType(OpStreamWait, chain, TypeChain)
	return c.emit(OpStreamWait, "", []ValueID{stream, event, chain}, TypeChain)
}
