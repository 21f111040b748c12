package ladder

import (
	"github.com/openmelsec/laddergen/internal/device"
)

// Builder assembles a program rung by rung, keeping rung numbering and
// the list of applied pattern names. It is request-scoped like the
// allocator and has no fluent surface: every helper appends exactly the
// rungs it names.
type Builder struct {
	name     string
	rungs    []Rung
	patterns []string
}

// NewBuilder creates a builder for a named program (typically "MAIN").
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddRung appends a pre-built rung, assigning the next rung number.
func (b *Builder) AddRung(comment string, condition Node, outputs ...Output) {
	b.rungs = append(b.rungs, Rung{
		Number:    len(b.rungs),
		Comment:   comment,
		Condition: condition,
		Outputs:   outputs,
	})
}

// AddSelfHoldRung appends a latch rung:
// LD start / OR relay / ANI stop / OUT relay.
func (b *Builder) AddSelfHoldRung(start, stop, relay device.Address, comment string) {
	cond := SeriesOf(
		ParallelOf(NOContact(start), NOContact(relay)),
		NCContact(stop),
	)
	b.AddRung(comment, cond, Coil{Device: relay})
}

// AddOutputRung appends a plain contact-to-coil rung: LD c / OUT out.
func (b *Builder) AddOutputRung(contact, out device.Address, comment string) {
	b.AddRung(comment, NOContact(contact), Coil{Device: out})
}

// AddTimerRung appends LD c / OUT Tn Kk.
func (b *Builder) AddTimerRung(contact, timer device.Address, k int, comment string) {
	b.AddRung(comment, NOContact(contact), TimerCoil{Device: timer, K: k})
}

// AddCounterRung appends LD c / OUT Cn Kk.
func (b *Builder) AddCounterRung(contact, counter device.Address, k int, comment string) {
	b.AddRung(comment, NOContact(contact), CounterCoil{Device: counter, K: k})
}

// AddStageGatedRung appends LD enable / ANI gate / OUT out. Used for
// interval outputs in chained sequences: on at the enable boundary, off
// when the gate timer completes.
func (b *Builder) AddStageGatedRung(enable, gate, out device.Address, comment string) {
	cond := SeriesOf(NOContact(enable), NCContact(gate))
	b.AddRung(comment, cond, Coil{Device: out})
}

// AddResetRung appends LD c / RST target.
func (b *Builder) AddResetRung(contact, target device.Address, comment string) {
	b.AddRung(comment, NOContact(contact), ResetCoil{Device: target})
}

// MarkPattern records an applied pattern name once.
func (b *Builder) MarkPattern(name string) {
	for _, p := range b.patterns {
		if p == name {
			return
		}
	}
	b.patterns = append(b.patterns, name)
}

// Len returns the number of rungs built so far.
func (b *Builder) Len() int { return len(b.rungs) }

// Build freezes the program with the device map of its run.
func (b *Builder) Build(devmap device.Map) Program {
	rungs := make([]Rung, len(b.rungs))
	copy(rungs, b.rungs)
	patterns := make([]string, len(b.patterns))
	copy(patterns, b.patterns)
	return Program{
		Name:      b.name,
		Rungs:     rungs,
		DeviceMap: devmap,
		Patterns:  patterns,
	}
}
