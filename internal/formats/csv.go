package formats

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
)

// Step weight per instruction. Timer and counter OUT occupies four
// steps because the K preset is stored inline; END occupies two.
func stepSize(inst il.Instruction) int {
	if timerCounterOut(inst) {
		return 4
	}
	if inst.Op == il.OpEND {
		return 2
	}
	return 1
}

func timerCounterOut(inst il.Instruction) bool {
	if inst.Op != il.OpOUT || inst.Device == nil {
		return false
	}
	return inst.Device.Class == device.ClassTimer || inst.Device.Class == device.ClassCounter
}

// ProgramCSV renders the sequence in the tab-delimited, quoted-field
// layout of GX Works2's Edit > Read from CSV File, encoded as UTF-16 LE
// with a BOM.
func ProgramCSV(seq il.Sequence, opts Options) []byte {
	var lines []string
	lines = append(lines, fmt.Sprintf("%q", opts.programName()))
	lines = append(lines, fmt.Sprintf("%q\t%q", "PLC Information:", opts.cpuType()))
	lines = append(lines, row("Step No.", "Line Statement", "Instruction",
		"I/O(Device)", "Blank", "PI Statement", "Note"))

	step := 0
	for _, inst := range seq.Instructions {
		switch {
		case timerCounterOut(inst):
			// Preset goes on a continuation row of its own.
			lines = append(lines, row(fmt.Sprint(step), "", "OUT", inst.Device.String(), "", "", ""))
			lines = append(lines, row("", "", "", fmt.Sprintf("K%d", inst.K), "", "", ""))
		case inst.Op.Bare():
			lines = append(lines, row(fmt.Sprint(step), "", string(inst.Op), "", "", "", ""))
		default:
			dev := ""
			if inst.Device != nil {
				dev = inst.Device.String()
			}
			lines = append(lines, row(fmt.Sprint(step), "", string(inst.Op), dev, "", "", ""))
		}
		step += stepSize(inst)
	}

	text := strings.Join(lines, "\r\n") + "\r\n"
	return encodeUTF16LE(text)
}

func row(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return strings.Join(quoted, "\t")
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 2+2*len(units))
	buf[0], buf[1] = 0xff, 0xfe
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2+2*i:], u)
	}
	return buf
}
