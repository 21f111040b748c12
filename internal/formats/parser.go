package formats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
)

// ParseError reports a malformed line in an IL text program.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// ParseIL reads a program in plain IL text, one instruction per line.
// Blank lines and lines starting with ';' are ignored. The inverse of
// Sequence.Text.
func ParseIL(text string) (il.Sequence, error) {
	var seq il.Sequence
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		inst, err := parseLine(line)
		if err != nil {
			return il.Sequence{}, &ParseError{Line: n + 1, Text: line, Msg: err.Error()}
		}
		seq.Append(inst)
	}
	return seq, nil
}

func parseLine(line string) (il.Instruction, error) {
	fields := strings.Fields(line)
	op, err := il.ParseOpcode(fields[0])
	if err != nil {
		return il.Instruction{}, err
	}

	if op.Bare() {
		if len(fields) > 1 {
			return il.Instruction{}, fmt.Errorf("%s takes no operand", op)
		}
		return il.Bare(op), nil
	}

	if len(fields) < 2 {
		return il.Instruction{}, fmt.Errorf("%s needs a device operand", op)
	}
	addr, err := device.ParseAddress(fields[1])
	if err != nil {
		return il.Instruction{}, err
	}

	switch len(fields) {
	case 2:
		return il.Dev(op, addr), nil
	case 3:
		k, err := parseK(fields[2])
		if err != nil {
			return il.Instruction{}, err
		}
		return il.DevK(op, addr, k), nil
	default:
		return il.Instruction{}, fmt.Errorf("too many operands")
	}
}

func parseK(s string) (int, error) {
	if !strings.HasPrefix(strings.ToUpper(s), "K") {
		return 0, fmt.Errorf("malformed preset %q", s)
	}
	k, err := strconv.Atoi(s[1:])
	if err != nil || k < 0 {
		return 0, fmt.Errorf("malformed preset %q", s)
	}
	return k, nil
}
