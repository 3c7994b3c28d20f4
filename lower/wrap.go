package lower

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/ir"
)

// WrapAsyncRegions groups every maximal contiguous run of device-schedulable
// operations in f's top-level blocks into one async-execute region each.
// Non-schedulable operations stay untouched in place, and the relative order
// of regions and untouched operations is exactly the source order. Blocks
// already inside a region are skipped.
//
// Returns a match failure if no run was wrapped; a block without any
// schedulable operation is simply left alone.
func WrapAsyncRegions(f *ir.Func, target Target) error {
	wrapped := 0
	for _, b := range topLevelBlocks(f) {
		wrapped += wrapBlock(f, b, target)
	}
	if wrapped == 0 {
		return matchFailuref("function %q has no device-schedulable run", f.Name())
	}
	klog.V(2).Infof("wrapped %d async-execute regions in %q", wrapped, f.Name())
	return nil
}

// topLevelBlocks returns f's blocks that are not the body of an
// async-execute region, i.e. the entry block.
func topLevelBlocks(f *ir.Func) []ir.BlockID {
	return []ir.BlockID{f.Entry()}
}

// wrapBlock wraps each maximal schedulable run of b and returns the number
// of regions created. Scanning transitions from a schedulable to a
// non-schedulable operation close a run; the block terminator closes the
// last one.
func wrapBlock(f *ir.Func, b ir.BlockID, target Target) int {
	ops := f.BlockOps(b)
	type run struct{ begin, end int }
	var runs []run
	begin := -1
	for i, op := range ops {
		if schedulable(f, op, target) {
			if begin < 0 {
				begin = i
			}
			continue
		}
		if begin >= 0 {
			runs = append(runs, run{begin, i})
			begin = -1
		}
	}
	if begin >= 0 {
		// A run reaching the terminator. The terminator itself never
		// ends up schedulable, so this only triggers on malformed input,
		// but close the run rather than drop it.
		runs = append(runs, run{begin, len(ops)})
	}

	// Apply back to front so indices of earlier runs stay valid.
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		region := f.Before(ops[r.begin]).AsyncExecute()
		body := f.OpBody(region)
		// The region was inserted at r.begin, shifting the run by one.
		f.MoveOpRange(b, r.begin+1, r.end+1, body, 0)
	}
	return len(runs)
}
