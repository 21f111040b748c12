// Package compiler linearizes ladder IR into the IL instruction list.
// The target is a single-accumulator stack machine: contact trees
// become LD/AND/OR chains with ANB/ORB block merges, and rungs with
// several outputs preserve the shared condition on the branch stack
// via MPS/MRD/MPP.
package compiler

import (
	"fmt"

	"github.com/openmelsec/laddergen/internal/il"
	"github.com/openmelsec/laddergen/internal/ladder"
)

// Error reports a structurally uncompilable rung.
type Error struct {
	Rung int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rung %d: %s", e.Rung, e.Msg)
}

// Compiler turns ladder programs into IL sequences. It is stateless and
// deterministic: identical IR yields byte-identical output.
type Compiler struct{}

func New() *Compiler { return &Compiler{} }

// Compile linearizes every rung in program order and appends the single
// terminating END.
func (c *Compiler) Compile(p ladder.Program) (il.Sequence, error) {
	var seq il.Sequence
	for _, rung := range p.Rungs {
		insts, err := c.compileRung(rung)
		if err != nil {
			return il.Sequence{}, err
		}
		seq.Extend(insts)
	}
	seq.Append(il.Bare(il.OpEND))
	return seq, nil
}

// CompileRung linearizes a single rung without the END terminator.
func (c *Compiler) CompileRung(r ladder.Rung) ([]il.Instruction, error) {
	return c.compileRung(r)
}

func (c *Compiler) compileRung(r ladder.Rung) ([]il.Instruction, error) {
	if r.Condition == nil {
		return nil, &Error{Rung: r.Number, Msg: "empty condition network"}
	}
	if len(r.Outputs) == 0 {
		return nil, &Error{Rung: r.Number, Msg: "no output elements"}
	}

	insts, err := c.compileNode(r.Condition, r.Number)
	if err != nil {
		return nil, err
	}

	if len(r.Outputs) == 1 {
		return append(insts, c.compileOutput(r.Outputs[0])...), nil
	}

	// Fan-out: the machine has one accumulator, so the shared condition
	// is pushed once (MPS), re-read for middle branches (MRD) and popped
	// on the last one (MPP).
	for i, out := range r.Outputs {
		switch {
		case i == 0:
			insts = append(insts, il.Bare(il.OpMPS))
		case i < len(r.Outputs)-1:
			insts = append(insts, il.Bare(il.OpMRD))
		default:
			insts = append(insts, il.Bare(il.OpMPP))
		}
		insts = append(insts, c.compileOutput(out)...)
	}
	return insts, nil
}

// compileNode compiles a condition subtree that starts its own block,
// i.e. its first contact loads with LD/LDI.
func (c *Compiler) compileNode(n ladder.Node, rung int) ([]il.Instruction, error) {
	switch node := n.(type) {
	case ladder.Contact:
		return []il.Instruction{c.load(node)}, nil
	case ladder.Series:
		return c.compileSeries(node, rung)
	case ladder.Parallel:
		return c.compileParallel(node, rung)
	default:
		return nil, &Error{Rung: rung, Msg: fmt.Sprintf("unknown node type %T", n)}
	}
}

func (c *Compiler) compileSeries(s ladder.Series, rung int) ([]il.Instruction, error) {
	if len(s.Nodes) == 0 {
		return nil, &Error{Rung: rung, Msg: "empty series"}
	}
	var insts []il.Instruction
	for i, child := range s.Nodes {
		switch node := child.(type) {
		case ladder.Contact:
			if i == 0 {
				insts = append(insts, c.load(node))
			} else {
				insts = append(insts, c.join(node, il.OpAND, il.OpANI))
			}
		default:
			block, err := c.compileNode(child, rung)
			if err != nil {
				return nil, err
			}
			insts = append(insts, block...)
			if i > 0 {
				insts = append(insts, il.Bare(il.OpANB))
			}
		}
	}
	return insts, nil
}

func (c *Compiler) compileParallel(p ladder.Parallel, rung int) ([]il.Instruction, error) {
	if len(p.Nodes) == 0 {
		return nil, &Error{Rung: rung, Msg: "empty parallel"}
	}

	simple := true
	for _, child := range p.Nodes {
		if _, ok := child.(ladder.Contact); !ok {
			simple = false
			break
		}
	}

	var insts []il.Instruction
	if simple {
		for i, child := range p.Nodes {
			contact := child.(ladder.Contact)
			if i == 0 {
				insts = append(insts, c.load(contact))
			} else {
				insts = append(insts, c.join(contact, il.OpOR, il.OpORI))
			}
		}
		return insts, nil
	}

	// Parallel-of-series: every branch is its own block, merged with ORB.
	for i, child := range p.Nodes {
		block, err := c.compileNode(child, rung)
		if err != nil {
			return nil, err
		}
		insts = append(insts, block...)
		if i > 0 {
			insts = append(insts, il.Bare(il.OpORB))
		}
	}
	return insts, nil
}

func (c *Compiler) load(contact ladder.Contact) il.Instruction {
	if contact.Mode == ladder.NC {
		return il.Dev(il.OpLDI, contact.Device)
	}
	return il.Dev(il.OpLD, contact.Device)
}

func (c *Compiler) join(contact ladder.Contact, open, closed il.Opcode) il.Instruction {
	if contact.Mode == ladder.NC {
		return il.Dev(closed, contact.Device)
	}
	return il.Dev(open, contact.Device)
}

func (c *Compiler) compileOutput(out ladder.Output) []il.Instruction {
	switch o := out.(type) {
	case ladder.Coil:
		return []il.Instruction{il.Dev(il.OpOUT, o.Device)}
	case ladder.TimerCoil:
		return []il.Instruction{il.DevK(il.OpOUT, o.Device, o.K)}
	case ladder.CounterCoil:
		return []il.Instruction{il.DevK(il.OpOUT, o.Device, o.K)}
	case ladder.SetCoil:
		return []il.Instruction{il.Dev(il.OpSET, o.Device)}
	case ladder.ResetCoil:
		return []il.Instruction{il.Dev(il.OpRST, o.Device)}
	default:
		// Output set is closed; reaching this is a programming error.
		panic(fmt.Sprintf("unknown output type %T", out))
	}
}
