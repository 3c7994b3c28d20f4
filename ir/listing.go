package ir

import (
	"fmt"
	"strings"
)

// String renders the function as a deterministic textual listing. Values are
// numbered by order of appearance, so two structurally identical functions
// render identically regardless of arena layout.
func (f *Func) String() string {
	p := &printer{f: f, names: make(map[ValueID]int)}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("func @%s(", f.name))
	for i, arg := range f.blocks[f.entry].args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", p.name(arg), f.values[arg].typ))
	}
	sb.WriteString(")")
	if len(f.results) > 0 {
		types := make([]string, len(f.results))
		for i, t := range f.results {
			types[i] = t.String()
		}
		sb.WriteString(" -> (" + strings.Join(types, ", ") + ")")
	}
	sb.WriteString(" {\n")
	p.block(&sb, f.entry, "  ")
	sb.WriteString("}\n")
	return sb.String()
}

type printer struct {
	f     *Func
	names map[ValueID]int
	next  int
}

func (p *printer) name(v ValueID) string {
	n, ok := p.names[v]
	if !ok {
		n = p.next
		p.next++
		p.names[v] = n
	}
	return fmt.Sprintf("%%%d", n)
}

func (p *printer) block(sb *strings.Builder, b BlockID, indent string) {
	for _, op := range p.f.blocks[b].ops {
		p.op(sb, op, indent)
	}
}

func (p *printer) op(sb *strings.Builder, op OpID, indent string) {
	data := &p.f.ops[op]
	sb.WriteString(indent)
	if len(data.results) > 0 {
		names := make([]string, len(data.results))
		for i, r := range data.results {
			names[i] = p.name(r)
		}
		sb.WriteString(strings.Join(names, ", ") + " = ")
	}
	sb.WriteString(data.kind.String())
	if data.kind == OpKernel {
		sb.WriteString(fmt.Sprintf(" %q", data.name))
	}
	if len(data.operands) > 0 {
		names := make([]string, len(data.operands))
		for i, v := range data.operands {
			names[i] = p.name(v)
		}
		sb.WriteString("(" + strings.Join(names, ", ") + ")")
	}
	if data.kind == OpAsyncExecute {
		body := data.body
		args := p.f.blocks[body].args
		sb.WriteString(" {\n")
		sb.WriteString(indent + "^(")
		for i, arg := range args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %s", p.name(arg), p.f.values[arg].typ))
		}
		sb.WriteString("):\n")
		p.block(sb, body, indent+"  ")
		sb.WriteString(indent + "}")
	}
	sb.WriteString("\n")
}
