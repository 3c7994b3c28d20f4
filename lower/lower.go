// Package lower rewrites a dataflow function from host-side happens-before
// form into an explicit device schedule of streams and events.
//
// The host side of a program expresses ordering with a single opaque chain
// threaded through it; a device expresses ordering with independently
// scheduled streams synchronized by events. Lowering bridges the two in two
// phases:
//
//  1. GroupAsyncRegions wraps every maximal run of device-schedulable
//     operations (as classified by a Target) into an async-execute region
//     carrying one (chain, stream) token pair. It runs before any device
//     resource exists; regions are purely a grouping construct.
//
//  2. Flatten turns the grouped function into a flat schedule: it
//     normalizes the function signature to (chain, stream, ...) -> chain,
//     inlines regions back into their parent once their token is traceable
//     to a concrete pack, and expands await and yield nodes into stream and
//     event instructions. Tokens never survive flattening.
//
// Each rewrite either succeeds or reports a match failure: a recoverable
// rejection that leaves the function unmodified so the driver can retry
// after other rewrites unblock it. Flatten stages all edits in a
// transaction; if the function does not reach the normalized, region-free
// shape, the transaction rolls back and Flatten reports a hard error, since
// a partially lowered function mixes the two ordering models inconsistently.
package lower

import (
	"github.com/pkg/errors"

	"github.com/gomlx/asyncflow/ir"
)

// Target classifies operations as device-schedulable. Terminators and
// async-execute regions are never schedulable, whatever the target says.
type Target interface {
	IsLegal(f *ir.Func, op ir.OpID) bool
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(f *ir.Func, op ir.OpID) bool

// IsLegal implements Target.
func (fn TargetFunc) IsLegal(f *ir.Func, op ir.OpID) bool { return fn(f, op) }

// ErrNoMatch is the sentinel wrapped by every match failure.
var ErrNoMatch = errors.New("no match")

// matchFailuref builds a match failure: a non-fatal rejection carrying a
// description of why the rewrite did not apply.
func matchFailuref(format string, args ...any) error {
	return errors.Wrapf(ErrNoMatch, format, args...)
}

// IsMatchFailure reports whether err is a recoverable match failure, as
// opposed to a hard conversion error.
func IsMatchFailure(err error) bool {
	return errors.Is(err, ErrNoMatch)
}
