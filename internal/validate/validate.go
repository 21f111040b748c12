// Package validate checks the structural well-formedness of compiled IL
// sequences. Checks run independently and the report carries every
// violation at once, never just the first.
package validate

import (
	"fmt"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
)

type Severity string

const (
	SevError   Severity = "error"
	SevWarning Severity = "warning"
)

// Issue is one validator finding, addressed by instruction position.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Position int      `json:"position"`
	Device   string   `json:"device,omitempty"`
}

// Report collects every issue found in one sequence.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) addError(i Issue) {
	i.Severity = SevError
	r.Errors = append(r.Errors, i)
}

func (r *Report) addWarning(i Issue) {
	i.Severity = SevWarning
	r.Warnings = append(r.Warnings, i)
}

func (r *Report) finalize() {
	r.Valid = len(r.Errors) == 0
}

// StructuralError wraps a failed report so callers receive the full
// violation list as a single error value.
type StructuralError struct {
	Report Report
}

func (e *StructuralError) Error() string {
	msgs := make([]string, len(e.Report.Errors))
	for i, issue := range e.Report.Errors {
		msgs[i] = fmt.Sprintf("%s at %d: %s", issue.Code, issue.Position, issue.Message)
	}
	return fmt.Sprintf("program failed validation (%d violations): %s",
		len(e.Report.Errors), strings.Join(msgs, "; "))
}

// Maximum K preset representable for a timer/counter output.
const maxKValue = 32767

// Validator checks IL sequences against the structural rules of the
// target. Stateless; safe for concurrent use.
type Validator struct{}

func New() *Validator { return &Validator{} }

// Validate runs every check against the sequence. The device map must
// come from the same compilation run; operand membership is checked
// against it.
func (v *Validator) Validate(seq il.Sequence, devmap device.Map) Report {
	rep := Report{}
	v.checkEnd(seq, &rep)
	v.checkStacks(seq, &rep)
	v.checkOperands(seq, devmap, &rep)
	rep.finalize()
	return rep
}

func (v *Validator) checkEnd(seq il.Sequence, rep *Report) {
	if len(seq.Instructions) == 0 {
		rep.addError(Issue{Code: "IL_001", Message: "empty instruction sequence"})
		return
	}
	last := seq.Instructions[len(seq.Instructions)-1]
	if last.Op != il.OpEND {
		rep.addError(Issue{
			Code:     "IL_002",
			Message:  "program must terminate with END",
			Position: len(seq.Instructions) - 1,
		})
	}
	for i, inst := range seq.Instructions[:len(seq.Instructions)-1] {
		if inst.Op == il.OpEND {
			rep.addError(Issue{
				Code:     "IL_003",
				Message:  "END before the final instruction",
				Position: i,
			})
		}
	}
}

// checkStacks simulates the machine's block and branch stacks. An LD/LDI
// opens a block; ANB/ORB merge the two most recent blocks; an output
// instruction requires exactly one open block, so a dangling second LD
// without a combinator is caught when its rung terminates. MPS pushes
// the accumulator onto the branch stack, MRD re-reads it without
// popping, MPP pops; net branch depth must return to zero.
func (v *Validator) checkStacks(seq il.Sequence, rep *Report) {
	blocks := 0 // open LD blocks feeding the accumulator
	branch := 0 // branch stack depth (MPS/MRD/MPP)

	for i, inst := range seq.Instructions {
		switch inst.Op {
		case il.OpLD, il.OpLDI:
			blocks++
		case il.OpAND, il.OpANI, il.OpOR, il.OpORI:
			if blocks < 1 {
				rep.addError(Issue{
					Code:     "IL_012",
					Message:  fmt.Sprintf("%s without a preceding LD/LDI", inst.Op),
					Position: i,
				})
			}
		case il.OpANB, il.OpORB:
			if blocks < 2 {
				rep.addError(Issue{
					Code:     "IL_011",
					Message:  fmt.Sprintf("%s needs two open blocks, have %d", inst.Op, blocks),
					Position: i,
				})
			} else {
				blocks--
			}
		case il.OpMPS:
			if blocks != 1 {
				rep.addError(Issue{
					Code:     "IL_013",
					Message:  fmt.Sprintf("MPS requires a single resolved condition, have %d open blocks", blocks),
					Position: i,
				})
			}
			branch++
		case il.OpMRD:
			if branch < 1 {
				rep.addError(Issue{Code: "IL_014", Message: "MRD without matching MPS", Position: i})
			}
			// Read-only: restores the accumulator, does not pop.
			blocks = 1
		case il.OpMPP:
			if branch < 1 {
				rep.addError(Issue{Code: "IL_014", Message: "MPP without matching MPS", Position: i})
			} else {
				branch--
			}
			blocks = 1
		case il.OpOUT, il.OpSET, il.OpRST:
			if blocks != 1 {
				rep.addError(Issue{
					Code:     "IL_010",
					Message:  fmt.Sprintf("output with %d open blocks; every LD/LDI needs a combinator or its own rung", blocks),
					Position: i,
				})
			}
			blocks = 0
		case il.OpEND:
			if blocks != 0 {
				rep.addError(Issue{
					Code:     "IL_010",
					Message:  fmt.Sprintf("%d unterminated condition blocks at END", blocks),
					Position: i,
				})
			}
			if branch != 0 {
				rep.addError(Issue{
					Code:     "IL_015",
					Message:  fmt.Sprintf("branch stack depth %d at END; %d MPS without MPP", branch, branch),
					Position: i,
				})
			}
		}
	}
}

func (v *Validator) checkOperands(seq il.Sequence, devmap device.Map, rep *Report) {
	for i, inst := range seq.Instructions {
		switch {
		case inst.Op.NeedsDevice():
			if inst.Device == nil {
				rep.addError(Issue{
					Code:     "IL_020",
					Message:  fmt.Sprintf("%s requires a device operand", inst.Op),
					Position: i,
				})
				continue
			}
			v.checkDevice(i, inst, devmap, rep)
		case inst.Op.Bare():
			if inst.Device != nil {
				rep.addError(Issue{
					Code:     "IL_021",
					Message:  fmt.Sprintf("%s takes no device operand", inst.Op),
					Position: i,
					Device:   inst.Device.String(),
				})
			}
		}
	}
}

func (v *Validator) checkDevice(pos int, inst il.Instruction, devmap device.Map, rep *Report) {
	addr := *inst.Device

	if !addr.Class.Valid() {
		rep.addError(Issue{
			Code:     "IL_022",
			Message:  fmt.Sprintf("unknown device class %q", addr.Class),
			Position: pos,
			Device:   addr.String(),
		})
		return
	}

	switch inst.Op {
	case il.OpOUT, il.OpSET, il.OpRST:
		if addr.Class == device.ClassInput {
			rep.addError(Issue{
				Code:     "IL_022",
				Message:  "inputs cannot be driven as outputs",
				Position: pos,
				Device:   addr.String(),
			})
		}
	default:
		if addr.Class == device.ClassRegister {
			rep.addError(Issue{
				Code:     "IL_022",
				Message:  "data registers have no contact form",
				Position: pos,
				Device:   addr.String(),
			})
		}
	}

	// Membership is only checkable when a device map from the same run
	// is present; imported programs carry none.
	if len(devmap.Allocations) > 0 && !devmap.Has(addr) {
		rep.addError(Issue{
			Code:     "IL_023",
			Message:  "device not allocated in this run",
			Position: pos,
			Device:   addr.String(),
		})
	}

	timerOrCounter := addr.Class == device.ClassTimer || addr.Class == device.ClassCounter
	if inst.Op == il.OpOUT && timerOrCounter {
		if inst.K <= 0 {
			rep.addError(Issue{
				Code:     "IL_030",
				Message:  "timer/counter OUT requires a positive K preset",
				Position: pos,
				Device:   addr.String(),
			})
		} else if inst.K > maxKValue {
			rep.addError(Issue{
				Code:     "IL_031",
				Message:  fmt.Sprintf("K%d exceeds the target maximum %d", inst.K, maxKValue),
				Position: pos,
				Device:   addr.String(),
			})
		}
	}
	if inst.K > 0 && !(inst.Op == il.OpOUT && timerOrCounter) {
		rep.addWarning(Issue{
			Code:     "IL_032",
			Message:  fmt.Sprintf("%s ignores its K operand", inst.Op),
			Position: pos,
			Device:   addr.String(),
		})
	}
}
