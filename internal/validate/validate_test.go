package validate

import (
	"testing"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
)

var (
	x0 = device.Address{Class: device.ClassInput, Number: 0}
	x1 = device.Address{Class: device.ClassInput, Number: 1}
	y0 = device.Address{Class: device.ClassOutput, Number: 0}
	m0 = device.Address{Class: device.ClassRelay, Number: 0}
	t0 = device.Address{Class: device.ClassTimer, Number: 0}
	d0 = device.Address{Class: device.ClassRegister, Number: 0}
)

func seqOf(insts ...il.Instruction) il.Sequence {
	return il.Sequence{Instructions: insts}
}

func codes(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func hasCode(issues []Issue, code string) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func TestValidateCleanProgram(t *testing.T) {
	seq := seqOf(
		il.Dev(il.OpLD, x0),
		il.Dev(il.OpOR, m0),
		il.Dev(il.OpANI, x1),
		il.Dev(il.OpOUT, m0),
		il.Dev(il.OpLD, m0),
		il.DevK(il.OpOUT, t0, 50),
		il.Dev(il.OpLD, t0),
		il.Dev(il.OpOUT, y0),
		il.Bare(il.OpEND),
	)
	rep := New().Validate(seq, device.Map{})
	if !rep.Valid {
		t.Fatalf("clean program reported invalid: %v", codes(rep.Errors))
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", codes(rep.Warnings))
	}
}

func TestValidateStructuralIssues(t *testing.T) {
	tests := []struct {
		name string
		seq  il.Sequence
		want string
	}{
		{
			name: "empty sequence",
			seq:  seqOf(),
			want: "IL_001",
		},
		{
			name: "missing end",
			seq:  seqOf(il.Dev(il.OpLD, x0), il.Dev(il.OpOUT, y0)),
			want: "IL_002",
		},
		{
			name: "end before final instruction",
			seq: seqOf(il.Dev(il.OpLD, x0), il.Bare(il.OpEND),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_003",
		},
		{
			name: "output with dangling block",
			seq: seqOf(il.Dev(il.OpLD, x0), il.Dev(il.OpLD, x1),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_010",
		},
		{
			name: "orb with one block",
			seq: seqOf(il.Dev(il.OpLD, x0), il.Bare(il.OpORB),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_011",
		},
		{
			name: "and without load",
			seq: seqOf(il.Dev(il.OpAND, x0), il.Dev(il.OpLD, x1),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_012",
		},
		{
			name: "mrd without mps",
			seq: seqOf(il.Dev(il.OpLD, x0), il.Bare(il.OpMRD),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_014",
		},
		{
			name: "mps without mpp",
			seq: seqOf(il.Dev(il.OpLD, x0), il.Bare(il.OpMPS),
				il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_015",
		},
		{
			name: "missing device operand",
			seq:  seqOf(il.Bare(il.OpLD), il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_020",
		},
		{
			name: "input driven as output",
			seq:  seqOf(il.Dev(il.OpLD, x0), il.Dev(il.OpOUT, x1), il.Bare(il.OpEND)),
			want: "IL_022",
		},
		{
			name: "register used as contact",
			seq:  seqOf(il.Dev(il.OpLD, d0), il.Dev(il.OpOUT, y0), il.Bare(il.OpEND)),
			want: "IL_022",
		},
		{
			name: "timer out without preset",
			seq:  seqOf(il.Dev(il.OpLD, x0), il.Dev(il.OpOUT, t0), il.Bare(il.OpEND)),
			want: "IL_030",
		},
		{
			name: "preset beyond maximum",
			seq:  seqOf(il.Dev(il.OpLD, x0), il.DevK(il.OpOUT, t0, 40000), il.Bare(il.OpEND)),
			want: "IL_031",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := New().Validate(tt.seq, device.Map{})
			if rep.Valid {
				t.Fatal("report valid, want invalid")
			}
			if !hasCode(rep.Errors, tt.want) {
				t.Errorf("errors = %v, want %s", codes(rep.Errors), tt.want)
			}
		})
	}
}

func TestValidateReportsAllViolationsAtOnce(t *testing.T) {
	// Missing END, dangling block and an undriveable input together.
	seq := seqOf(
		il.Dev(il.OpLD, x0),
		il.Dev(il.OpLD, x1),
		il.Dev(il.OpOUT, x0),
	)
	rep := New().Validate(seq, device.Map{})
	for _, want := range []string{"IL_002", "IL_010", "IL_022"} {
		if !hasCode(rep.Errors, want) {
			t.Errorf("errors = %v, missing %s", codes(rep.Errors), want)
		}
	}
}

func TestValidateDeviceMembership(t *testing.T) {
	devmap := device.Map{Allocations: []device.Allocation{
		{Name: "PB1", Address: x0},
		{Name: "RL", Address: y0},
	}}
	seq := seqOf(
		il.Dev(il.OpLD, x0),
		il.Dev(il.OpOUT, y0),
		il.Dev(il.OpLD, x1), // never allocated
		il.Dev(il.OpOUT, y0),
		il.Bare(il.OpEND),
	)
	rep := New().Validate(seq, devmap)
	if !hasCode(rep.Errors, "IL_023") {
		t.Errorf("errors = %v, want IL_023 for X1", codes(rep.Errors))
	}

	// Without an allocation context membership is not checkable.
	rep = New().Validate(seq, device.Map{})
	if hasCode(rep.Errors, "IL_023") {
		t.Error("IL_023 reported against an empty device map")
	}
}

func TestValidateStrayPresetWarns(t *testing.T) {
	seq := seqOf(
		il.Dev(il.OpLD, x0),
		il.DevK(il.OpOUT, y0, 10),
		il.Bare(il.OpEND),
	)
	rep := New().Validate(seq, device.Map{})
	if !rep.Valid {
		t.Fatalf("stray preset should not invalidate: %v", codes(rep.Errors))
	}
	if !hasCode(rep.Warnings, "IL_032") {
		t.Errorf("warnings = %v, want IL_032", codes(rep.Warnings))
	}
}
