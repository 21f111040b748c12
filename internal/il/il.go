// Package il models the GX Works2 instruction-list program: a flat,
// ordered sequence of stack-machine operations produced by the ladder
// compiler and consumed by the format writers.
package il

import (
	"fmt"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
)

// Opcode is a single IL mnemonic.
type Opcode string

const (
	OpLD  Opcode = "LD"
	OpLDI Opcode = "LDI"
	OpAND Opcode = "AND"
	OpANI Opcode = "ANI"
	OpOR  Opcode = "OR"
	OpORI Opcode = "ORI"
	OpANB Opcode = "ANB"
	OpORB Opcode = "ORB"
	OpMPS Opcode = "MPS"
	OpMRD Opcode = "MRD"
	OpMPP Opcode = "MPP"
	OpOUT Opcode = "OUT"
	OpSET Opcode = "SET"
	OpRST Opcode = "RST"
	OpEND Opcode = "END"
)

// NeedsDevice reports whether the opcode carries a device operand.
func (op Opcode) NeedsDevice() bool {
	switch op {
	case OpLD, OpLDI, OpAND, OpANI, OpOR, OpORI, OpOUT, OpSET, OpRST:
		return true
	}
	return false
}

// Bare reports whether the opcode takes no operand at all.
func (op Opcode) Bare() bool {
	switch op {
	case OpANB, OpORB, OpMPS, OpMRD, OpMPP, OpEND:
		return true
	}
	return false
}

// Contact reports whether the opcode reads a device contact.
func (op Opcode) Contact() bool {
	switch op {
	case OpLD, OpLDI, OpAND, OpANI, OpOR, OpORI:
		return true
	}
	return false
}

// ParseOpcode maps a mnemonic string onto its Opcode.
func ParseOpcode(s string) (Opcode, error) {
	op := Opcode(strings.ToUpper(s))
	if op.NeedsDevice() || op.Bare() {
		return op, nil
	}
	return "", fmt.Errorf("unknown instruction %q", s)
}

// Instruction is one stack-machine operation. Device is nil for bare
// opcodes; K is 0 unless the instruction carries a timer/counter preset.
type Instruction struct {
	Op     Opcode          `json:"op"`
	Device *device.Address `json:"device,omitempty"`
	K      int             `json:"k,omitempty"`
}

// Text renders the instruction in line format, e.g. "OUT T0 K50".
func (i Instruction) Text() string {
	parts := []string{string(i.Op)}
	if i.Device != nil {
		parts = append(parts, i.Device.String())
	}
	if i.K > 0 {
		parts = append(parts, fmt.Sprintf("K%d", i.K))
	}
	return strings.Join(parts, " ")
}

// Sequence is the complete ordered instruction list of one program,
// terminated by exactly one END.
type Sequence struct {
	Instructions []Instruction `json:"instructions"`
}

func (s *Sequence) Append(inst Instruction) {
	s.Instructions = append(s.Instructions, inst)
}

func (s *Sequence) Extend(insts []Instruction) {
	s.Instructions = append(s.Instructions, insts...)
}

// Len returns the instruction count including END.
func (s Sequence) Len() int { return len(s.Instructions) }

// Text renders the whole sequence one instruction per line.
func (s Sequence) Text() string {
	lines := make([]string, len(s.Instructions))
	for i, inst := range s.Instructions {
		lines[i] = inst.Text()
	}
	return strings.Join(lines, "\n")
}

// Dev is a convenience constructor for instructions with a device operand.
func Dev(op Opcode, addr device.Address) Instruction {
	return Instruction{Op: op, Device: &addr}
}

// DevK builds a timer/counter output instruction with a K preset.
func DevK(op Opcode, addr device.Address, k int) Instruction {
	return Instruction{Op: op, Device: &addr, K: k}
}

// Bare builds an operand-less instruction.
func Bare(op Opcode) Instruction {
	return Instruction{Op: op}
}
