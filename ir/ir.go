// Package ir implements the operation representation rewritten by the
// lowering pipeline: functions owning flat arenas of operations, values and
// blocks, all indexed by integer handles.
//
// The representation is deliberately closed: there is a fixed set of value
// types (Type) and operation kinds (OpKind), so rewrites dispatch with a
// plain switch instead of an extensible pattern registry. Handles stay valid
// across edits, which lets Func.Stage snapshot a function and roll edits
// back wholesale (see Transaction).
//
// The main elements of the package are:
//
//   - Func: a single function, owner of the three arenas. Created with
//     NewFunc, grown through a Cursor, inspected through the accessor
//     methods (OpKind, Operands, Results, BlockOps, ...).
//
//   - Cursor: an insertion point inside a block, used to emit new
//     operations. All emission helpers type-check their operands eagerly
//     and panic on misuse, in the style of a graph builder: handle and type
//     errors are programming errors, not runtime conditions.
//
//   - Transaction: a staged edit of one Func, committed or rolled back as a
//     unit.
package ir

import (
	"github.com/gomlx/exceptions"
)

// Type of a value. The set is closed: the lowering pipeline never introduces
// value types at runtime.
type Type uint8

const (
	// TypeInvalid is the zero Type, never carried by a live value.
	TypeInvalid Type = iota

	// TypeChain is an opaque, payload-free happens-before signal with a
	// single producer per control path.
	TypeChain

	// TypeStream is an ordered device command-queue handle. Operations
	// issued to one stream execute in issue order; nothing is implied
	// across streams without explicit synchronization.
	TypeStream

	// TypeEvent is a point-in-time marker recorded on a stream and
	// waitable from other streams.
	TypeEvent

	// TypeToken pairs one chain with one stream. Tokens exist only at
	// async-execute boundaries and are gone from a fully lowered function.
	TypeToken

	// TypeContext is the device context owning streams and events.
	TypeContext

	// TypeOpaque is kernel payload data the scheduler never inspects.
	TypeOpaque
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeChain:
		return "chain"
	case TypeStream:
		return "stream"
	case TypeEvent:
		return "event"
	case TypeToken:
		return "token"
	case TypeContext:
		return "context"
	case TypeOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// OpKind identifies one of the fixed operation kinds.
type OpKind uint8

const (
	OpInvalid OpKind = iota

	// OpKernel is an opaque operation carrying a name. Whether a kernel is
	// device-schedulable is decided by a Target predicate, not by the kind.
	OpKernel

	// OpPack tags a (chain, stream) pair as a single token. Pack is the
	// only producer of TypeToken values, so "is this value a packed
	// token?" is a direct kind lookup on the defining op.
	OpPack

	// OpAsyncExecute brackets an ordered run of device-schedulable
	// operations. It takes at most one token operand, yields one token,
	// and owns a body block whose arguments are (chain, stream) and whose
	// terminator returns the body's final chain.
	OpAsyncExecute

	// OpReturn terminates a block. In a normalized function it carries
	// exactly one chain operand.
	OpReturn

	// OpAwait waits on event operands (plus at most one token operand)
	// before further work. If it declares a token result, it also forks a
	// new concurrent scope.
	OpAwait

	// OpYield publishes completion of the enclosing scope to consumers
	// outside it.
	OpYield

	// OpNewChain creates a fresh chain.
	OpNewChain

	// OpStreamGetContext returns the context owning a stream.
	OpStreamGetContext

	// OpStreamCreate creates a new stream on a context.
	OpStreamCreate

	// OpEventCreate creates a new event on a context.
	OpEventCreate

	// OpEventRecord records an event on a stream, after a chain.
	OpEventRecord

	// OpStreamWait makes a stream wait for an event, after a chain.
	OpStreamWait
)

// String implements fmt.Stringer.
func (k OpKind) String() string {
	switch k {
	case OpKernel:
		return "kernel"
	case OpPack:
		return "pack"
	case OpAsyncExecute:
		return "async.execute"
	case OpReturn:
		return "return"
	case OpAwait:
		return "await"
	case OpYield:
		return "yield"
	case OpNewChain:
		return "new_chain"
	case OpStreamGetContext:
		return "stream.get_context"
	case OpStreamCreate:
		return "stream.create"
	case OpEventCreate:
		return "event.create"
	case OpEventRecord:
		return "event.record"
	case OpStreamWait:
		return "stream.wait"
	default:
		return "invalid"
	}
}

// OpID indexes an operation in its Func's arena.
type OpID int32

// ValueID indexes a value in its Func's arena.
type ValueID int32

// BlockID indexes a block in its Func's arena.
type BlockID int32

// Invalid handles. All three compare less than any live handle.
const (
	InvalidOp    OpID    = -1
	InvalidValue ValueID = -1
	InvalidBlock BlockID = -1
)

func checkf(condition bool, format string, args ...any) {
	if !condition {
		exceptions.Panicf("ir: "+format, args...)
	}
}
