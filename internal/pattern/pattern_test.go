package pattern

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/ladder"
	"github.com/openmelsec/laddergen/internal/types"
)

// Start/stop lamp box with two cumulative delays, the classic practice
// layout: PB1 latches RL, YL follows 5s later, GL 10s after the start.
func lampBoxSpec() types.TimingSpec {
	return types.TimingSpec{
		Description: "lamp box",
		Inputs: []types.InputSignal{
			{Name: "PB1", Kind: types.InputPushButton, Mode: types.ModeMomentary, Comment: "start button"},
			{Name: "PB2", Kind: types.InputPushButton, Mode: types.ModeMomentary, Comment: "stop button"},
		},
		Outputs: []types.OutputSignal{
			{Name: "RL", Kind: types.OutputLamp, Comment: "red lamp"},
			{Name: "YL", Kind: types.OutputLamp, Comment: "yellow lamp"},
			{Name: "GL", Kind: types.OutputLamp, Comment: "green lamp"},
		},
		Events: []types.Event{
			{Trigger: "PB1", Action: "RL ON"},
			{Trigger: "PB1", Delay: 5, Action: "YL ON"},
			{Trigger: "PB1", Delay: 10, Action: "GL ON"},
			{Trigger: "PB2", Action: "ALL OFF"},
		},
	}
}

// Conveyor start-up where each delay is measured from the previous
// stage's completion, so the timers must chain.
func chainedSpec() types.TimingSpec {
	return types.TimingSpec{
		Description: "staged start-up",
		Inputs: []types.InputSignal{
			{Name: "PB1", Kind: types.InputPushButton, Mode: types.ModeMomentary},
			{Name: "PB2", Kind: types.InputPushButton, Mode: types.ModeMomentary},
		},
		Outputs: []types.OutputSignal{
			{Name: "RL", Kind: types.OutputLamp},
			{Name: "YL", Kind: types.OutputLamp},
			{Name: "GL", Kind: types.OutputLamp},
		},
		Events: []types.Event{
			{Trigger: "PB1", Action: "RL ON"},
			{Trigger: "RL", Delay: 5, Action: "YL ON"},
			{Trigger: "YL", Delay: 3, Action: "GL ON"},
			{Trigger: "PB2", Action: "ALL OFF"},
		},
	}
}

func kinds(matches []*Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Kind
	}
	return out
}

func TestPartitionLampBox(t *testing.T) {
	matches, err := NewLibrary().Partition(lampBoxSpec())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	want := []string{KindFullReset, KindSelfHold, KindTimerDelay, KindTimerDelay}
	if diff := cmp.Diff(want, kinds(matches)); diff != "" {
		t.Fatalf("pattern kinds mismatch (-want +got):\n%s", diff)
	}

	// Every event claimed exactly once.
	claimed := map[int]int{}
	for _, m := range matches {
		for _, ev := range m.Events {
			claimed[ev]++
		}
	}
	for ev := 0; ev < 4; ev++ {
		if claimed[ev] != 1 {
			t.Errorf("event %d claimed %d times", ev, claimed[ev])
		}
	}
}

func TestPartitionChainedBeatsIndependentTimers(t *testing.T) {
	matches, err := NewLibrary().Partition(chainedSpec())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	want := []string{KindFullReset, KindSequential}
	if diff := cmp.Diff(want, kinds(matches)); diff != "" {
		t.Fatalf("pattern kinds mismatch (-want +got):\n%s", diff)
	}
	seq := matches[1]
	if diff := cmp.Diff([]int{0, 1, 2}, seq.Events); diff != "" {
		t.Errorf("sequential claim mismatch (-want +got):\n%s", diff)
	}
	if seq.Confidence <= 0.6 {
		t.Errorf("chain confidence = %v, want above a lone timer's", seq.Confidence)
	}
}

func TestPartitionCumulativeDelaysStayIndependent(t *testing.T) {
	// Both delays key off PB1 directly; a chain would change the elapsed
	// times (5s and 10s would become 5s and 15s).
	matches, err := NewLibrary().Partition(lampBoxSpec())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	timers := 0
	for _, m := range matches {
		if m.Kind == KindTimerDelay {
			timers++
		}
		if m.Kind == KindSequential {
			t.Error("cumulative delays misread as a chain")
		}
	}
	if timers != 2 {
		t.Errorf("timer matches = %d, want 2", timers)
	}
}

func TestApplyLampBox(t *testing.T) {
	spec := lampBoxSpec()
	lib := NewLibrary()
	matches, err := lib.Partition(spec)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	alloc := device.NewAllocator(device.DefaultConfig())
	builder := ladder.NewBuilder(spec.Description)
	ctx := NewContext(spec, alloc, builder)
	if err := lib.Apply(matches, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Allocation order follows declaration order, not pattern rank:
	// start before stop, latch relay after both.
	wantDevices := map[string]string{
		"PB1":           "X0",
		"PB2":           "X1",
		"run_latch_pb1": "M0",
		"RL":            "Y0",
		"delay_YL":      "T0",
		"YL":            "Y1",
		"delay_GL":      "T1",
		"GL":            "Y2",
	}
	devmap := alloc.Map()
	for name, wantAddr := range wantDevices {
		got, ok := devmap.ByName(name)
		if !ok {
			t.Errorf("device %s not allocated", name)
			continue
		}
		if got.Address.String() != wantAddr {
			t.Errorf("%s = %s, want %s", name, got.Address.String(), wantAddr)
		}
	}
	if got := len(devmap.Allocations); got != len(wantDevices) {
		t.Errorf("allocation count = %d, want %d", got, len(wantDevices))
	}

	prog := builder.Build(devmap)
	if got := len(prog.Rungs); got != 6 {
		t.Errorf("rung count = %d, want 6", got)
	}
}

func TestApplyUnresolvedTrigger(t *testing.T) {
	spec := types.TimingSpec{
		Description: "broken",
		Inputs:      []types.InputSignal{{Name: "PB1"}},
		Outputs:     []types.OutputSignal{{Name: "RL"}},
		Events: []types.Event{
			{Trigger: "PB9", Action: "RL ON"}, // undeclared input
		},
	}
	lib := NewLibrary()
	matches, err := lib.Partition(spec)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	alloc := device.NewAllocator(device.DefaultConfig())
	ctx := NewContext(spec, alloc, ladder.NewBuilder(spec.Description))
	err = lib.Apply(matches, ctx)
	var unresolved *UnresolvedTriggerError
	if !errors.As(err, &unresolved) {
		t.Fatalf("err = %v, want UnresolvedTriggerError", err)
	}
	if unresolved.Ref != "PB9" {
		t.Errorf("unresolved ref = %q, want PB9", unresolved.Ref)
	}
}

func TestDetectFlickerExplicit(t *testing.T) {
	spec := types.TimingSpec{
		Description: "alarm",
		Inputs:      []types.InputSignal{{Name: "SW1", Mode: types.ModeMaintained}},
		Outputs:     []types.OutputSignal{{Name: "BZ", Kind: types.OutputBuzzer}},
		Events: []types.Event{
			{Trigger: "SW1", Delay: 1, Action: "BZ FLICKER"},
		},
	}
	matches, err := NewLibrary().Partition(spec)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Kind != KindFlicker {
		t.Fatalf("matches = %v, want one flicker", kinds(matches))
	}
}

func TestDetectFlickerCyclicPair(t *testing.T) {
	spec := types.TimingSpec{
		Description: "blinker",
		Inputs:      []types.InputSignal{{Name: "SW1", Mode: types.ModeMaintained}},
		Outputs: []types.OutputSignal{
			{Name: "L1", Kind: types.OutputLamp},
			{Name: "L2", Kind: types.OutputLamp},
		},
		Events: []types.Event{
			{Trigger: "L1", Delay: 0.5, Action: "L2 ON"},
			{Trigger: "L2", Delay: 0.5, Action: "L1 ON"},
		},
	}
	matches, err := NewLibrary().Partition(spec)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Kind != KindFlicker {
		t.Fatalf("matches = %v, want one flicker", kinds(matches))
	}
	if diff := cmp.Diff([]int{0, 1}, matches[0].Events); diff != "" {
		t.Errorf("claimed events mismatch (-want +got):\n%s", diff)
	}

	// The pair drives its own trigger, so binding must fall back to the
	// declared input. One maintained input and no stop: raw contact.
	alloc := device.NewAllocator(device.DefaultConfig())
	builder := ladder.NewBuilder(spec.Description)
	if err := NewLibrary().Apply(matches, NewContext(spec, alloc, builder)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	wantDevices := map[string]string{
		"SW1":            "X0",
		"flicker_on_l2":  "T0",
		"flicker_off_l2": "T1",
		"L2":             "Y0",
	}
	devmap := alloc.Map()
	for name, wantAddr := range wantDevices {
		got, ok := devmap.ByName(name)
		if !ok {
			t.Errorf("device %s not allocated", name)
			continue
		}
		if got.Address.String() != wantAddr {
			t.Errorf("%s = %s, want %s", name, got.Address.String(), wantAddr)
		}
	}
	if got := len(builder.Build(devmap).Rungs); got != 3 {
		t.Errorf("rung count = %d, want 3", got)
	}
}

func TestGenericFallback(t *testing.T) {
	spec := types.TimingSpec{
		Description: "direct wiring",
		Inputs:      []types.InputSignal{{Name: "LS1", Kind: types.InputLimitSwitch, Mode: types.ModeMaintained}},
		Outputs:     []types.OutputSignal{{Name: "SOL", Kind: types.OutputSolenoid}},
		Events: []types.Event{
			{Trigger: "LS1", Delay: 2, Action: "SOL OFF"},
		},
	}
	lib := NewLibrary()
	matches, err := lib.Partition(spec)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Kind != KindGeneric {
		t.Fatalf("matches = %v, want one generic", kinds(matches))
	}

	analysis, err := lib.Analyze(spec)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(analysis.Warnings) == 0 {
		t.Error("generic fallback produced no analysis warning")
	}
}

func TestAnalyzeLampBoxFlags(t *testing.T) {
	analysis, err := NewLibrary().Analyze(lampBoxSpec())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !analysis.HasSelfHold || !analysis.HasTimer || !analysis.HasFullReset {
		t.Errorf("flags = %+v, want self-hold, timer and full-reset set", analysis)
	}
	if analysis.HasSequential || analysis.HasFlicker {
		t.Errorf("flags = %+v, sequential/flicker should be unset", analysis)
	}
}

// stubPattern claims event 0 at a fixed confidence, for exercising the
// overlap arbitration without depending on the built-in detectors.
type stubPattern struct {
	kind       string
	confidence float64
}

func (p *stubPattern) Name() string  { return p.kind }
func (p *stubPattern) Priority() int { return 10 }

func (p *stubPattern) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	if !free.Free(0) {
		return nil
	}
	return []*Match{{Kind: p.kind, Confidence: p.confidence, Events: []int{0}}}
}

func (p *stubPattern) Bind(*Match, *Context) error { return nil }
func (p *stubPattern) Emit(*Match, *Context) error { return nil }

func TestPartitionAmbiguousOverlap(t *testing.T) {
	spec := types.TimingSpec{
		Description: "single event",
		Inputs:      []types.InputSignal{{Name: "PB1"}},
		Outputs:     []types.OutputSignal{{Name: "RL"}},
		Events:      []types.Event{{Trigger: "PB1", Action: "RL ON"}},
	}
	overlapping := []Pattern{
		&stubPattern{kind: "edge_count", confidence: 0.7},
		&stubPattern{kind: "pulse_train", confidence: 0.7},
	}

	// Equal confidence, equal priority, no resolver: refuse to guess.
	_, err := NewLibrary(WithPatterns(overlapping...)).Partition(spec)
	var ambiguous *AmbiguousMatchError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("err = %v, want AmbiguousMatchError", err)
	}
	if ambiguous.Confidence != 0.7 {
		t.Errorf("confidence = %.2f, want 0.70", ambiguous.Confidence)
	}
	if ambiguous.Kinds != [2]string{"edge_count", "pulse_train"} {
		t.Errorf("kinds = %v, want [edge_count pulse_train]", ambiguous.Kinds)
	}

	// An installed resolver picks the winner instead.
	lib := NewLibrary(
		WithPatterns(overlapping...),
		WithResolver(func(a, b *Match) (*Match, error) {
			if b.Kind == "pulse_train" {
				return b, nil
			}
			return a, nil
		}),
	)
	matches, err := lib.Partition(spec)
	if err != nil {
		t.Fatalf("Partition with resolver failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Kind != "pulse_train" {
		t.Errorf("matches = %v, want the resolver's pick", kinds(matches))
	}
}
