// asyncflow_lower demonstrates the lowering pipeline end to end: it builds a
// small dataflow program, groups the device kernels into asynchronous regions,
// flattens the result into an explicit stream/event schedule, and optionally
// executes it on the host runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/gomlx/asyncflow/interp"
	"github.com/gomlx/asyncflow/ir"
	"github.com/gomlx/asyncflow/lower"
)

var (
	flagRun = flag.Bool("run", true, "Execute the flattened program on the host runtime after lowering. "+
		"Disable to only print the rewrite stages.")
	flagTimeout = flag.Duration("timeout", 10*time.Second, "Deadline for executing the flattened program.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'asyncflow_lower -help'.", flag.Args())
		os.Exit(1)
	}

	f := buildProgram()
	printStage("Source", f)

	must.M(lower.GroupAsyncRegions(f, gpuTarget))
	wireRegions(f)
	must.M(lower.LowerRegionKernels(f))
	printStage("Grouped", f)

	must.M(lower.Flatten(f))
	printStage("Flattened", f)
	printStats(f)

	if *flagRun {
		run(f)
	}
}

// gpuTarget marks kernels named "gpu.*" as device-schedulable.
var gpuTarget = lower.TargetFunc(func(f *ir.Func, op ir.OpID) bool {
	return f.OpKindOf(op) == ir.OpKernel && strings.HasPrefix(f.OpName(op), "gpu.")
})

// buildProgram assembles the demo dataflow: two bursts of GPU kernels with a
// host-side log between them.
func buildProgram() *ir.Func {
	f := ir.NewFunc("main")
	at := f.AtEnd(f.Entry())
	at.Kernel("gpu.fill", nil)
	at.Kernel("gpu.scale", nil)
	at.Kernel("host.log", nil)
	at.Kernel("gpu.reduce", nil)
	at.Return()
	return f
}

// wireRegions plays the part of the surrounding framework: it forks a device
// scope before the first region, chains the second region on the first, and
// joins the last region back into the function before returning.
func wireRegions(f *ir.Func) {
	var regions []ir.OpID
	for _, op := range f.BlockOps(f.Entry()) {
		if f.OpKindOf(op) == ir.OpAsyncExecute {
			regions = append(regions, op)
		}
	}
	if len(regions) == 0 {
		klog.Errorf("No asynchronous regions were formed, nothing to wire.")
		os.Exit(1)
	}
	fork := f.Before(regions[0]).Await(nil, true)
	token := f.Result(fork)
	for _, region := range regions {
		f.SetOperands(region, token)
		token = f.Result(region)
	}
	f.Before(f.Terminator(f.Entry())).Await([]ir.ValueID{token}, false)
}

func run(f *ir.Func) {
	reg := interp.NewRegistry()
	for _, name := range []string{"gpu.fill", "gpu.scale", "gpu.reduce"} {
		reg.Register(name, func(_ context.Context, _ []any) {
			fmt.Printf("  [device] %s\n", name)
		})
	}
	reg.Register("host.log", func(_ context.Context, _ []any) {
		fmt.Println("  [host] log")
	})

	fmt.Println(titleStyle.Render("Execution"))
	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()
	must.M(interp.Run(ctx, f, reg))
	fmt.Println("  ok")
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	listingStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func printStage(stage string, f *ir.Func) {
	fmt.Println(titleStyle.Render(stage))
	fmt.Println(listingStyle.Render(f.String()))
}

func printStats(f *ir.Func) {
	perKind := make(map[ir.OpKind]int)
	var order []ir.OpKind
	total := 0
	for _, op := range f.BlockOps(f.Entry()) {
		kind := f.OpKindOf(op)
		if perKind[kind] == 0 {
			order = append(order, kind)
		}
		perKind[kind]++
		total++
	}
	fmt.Println(titleStyle.Render("Statistics"))
	table := newPlainTable(true)
	table.Row("Operation", "Count")
	for _, kind := range order {
		table.Row(kind.String(), humanize.Comma(int64(perKind[kind])))
	}
	table.Row("total", humanize.Comma(int64(total)))
	fmt.Println(table.Render())
}

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}
