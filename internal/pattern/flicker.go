package pattern

import (
	"fmt"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/ladder"
	"github.com/openmelsec/laddergen/internal/types"
)

// Flicker matches a repeating on/off output: either an explicit
// "NAME FLICKER" action, or two delayed events that re-trigger each
// other cyclically. Emitted circuit, cross-coupled timers:
//
//	LD  M0 / ANI T1 / OUT T0 Kon    on-phase timer, reset by T1
//	LD  T0 / OUT T1 Koff            off-phase timer
//	LD  T0 / ANI T1 / OUT Y0        output high during the off-timer run
type Flicker struct{}

func (*Flicker) Name() string  { return KindFlicker }
func (*Flicker) Priority() int { return 15 }

type flickerDet struct {
	event   int     // the claimed event (explicit form) or first of the pair
	pair    int     // second event of a cyclic pair, or -1
	out     string  // flickered output
	trigger string  // enable reference
	lead    float64 // delay between trigger onset and flicker start
	onSec   float64
	offSec  float64
}

type flickerBound struct {
	enable device.Address
	tOn    device.Address
	tOff   device.Address
	kOn    int
	kOff   int
	out    device.Address
}

// Default phase length when the event only states when flickering
// starts, not its period.
const defaultFlickerSeconds = 0.5

func (p *Flicker) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	// Explicit form: action verb FLICKER.
	for i, ev := range spec.Events {
		if !free.Free(i) {
			continue
		}
		name, verb := types.SplitRef(ev.Action)
		if verb != "FLICKER" {
			continue
		}
		if _, ok := spec.Output(name); !ok {
			continue
		}
		trigName, _ := types.SplitRef(ev.Trigger)
		det := &flickerDet{event: i, pair: -1, out: name, trigger: ev.Trigger, lead: ev.Delay}
		if _, isOutput := spec.Output(trigName); isOutput && ev.Delayed() {
			// Flicker starts a delay after another output: the period
			// falls back to the default, the delay is a lead-in.
			det.onSec, det.offSec = defaultFlickerSeconds, defaultFlickerSeconds
		} else {
			period := ev.Delay
			if period <= 0 {
				period = 1.0
			}
			det.lead = 0
			det.onSec, det.offSec = period, period
		}
		return []*Match{{
			Kind:       KindFlicker,
			Confidence: 0.85,
			Events:     []int{i},
			det:        det,
		}}
	}

	// Cyclic pair: A's completion starts B after d1, B's completion
	// restarts A after d2.
	for i, ev := range spec.Events {
		if !free.Free(i) || !ev.Delayed() {
			continue
		}
		aTrig, _ := types.SplitRef(ev.Trigger)
		aAct, aVerb := types.SplitRef(ev.Action)
		if aVerb != "ON" || aTrig == aAct {
			continue
		}
		for j := i + 1; j < len(spec.Events); j++ {
			ev2 := spec.Events[j]
			if !free.Free(j) || !ev2.Delayed() {
				continue
			}
			bTrig, _ := types.SplitRef(ev2.Trigger)
			bAct, bVerb := types.SplitRef(ev2.Action)
			if bVerb != "ON" || bTrig != aAct || bAct != aTrig {
				continue
			}
			out := aAct
			if _, ok := spec.Output(out); !ok {
				if _, ok := spec.Output(aTrig); !ok {
					continue
				}
				out = aTrig
			}
			return []*Match{{
				Kind:       KindFlicker,
				Confidence: 0.85,
				Events:     []int{i, j},
				det: &flickerDet{
					event:   i,
					pair:    j,
					out:     out,
					trigger: ev.Trigger,
					onSec:   ev.Delay,
					offSec:  ev2.Delay,
				},
			}}
		}
	}
	return nil
}

func (p *Flicker) Bind(m *Match, ctx *Context) error {
	det := m.det.(*flickerDet)

	var enable device.Address
	var err error
	trigName, _ := types.SplitRef(det.trigger)
	switch {
	case det.pair >= 0:
		// A cyclic pair's trigger is one of its own outputs, which only
		// the cross-coupled timers drive. The enable comes from the
		// declared inputs instead: the first input, latched when a stop
		// is known.
		enable, err = cyclicEnable(ctx)
		if err != nil {
			return err
		}
	default:
		if timer, ok := ctx.StageTimer(trigName, det.lead); ok && det.lead > 0 {
			// The chain stage timer already spans the lead-in delay.
			enable = timer
			break
		}
		enable, err = ctx.ResolveEnable(det.trigger)
		if err != nil {
			return err
		}
	}

	lower := strings.ToLower(det.out)
	onAlloc, err := ctx.Alloc.AllocateTimer("flicker_on_"+lower, det.onSec,
		fmt.Sprintf("flicker on phase (%s)", det.out))
	if err != nil {
		return err
	}
	offAlloc, err := ctx.Alloc.AllocateTimer("flicker_off_"+lower, det.offSec,
		fmt.Sprintf("flicker off phase (%s)", det.out))
	if err != nil {
		return err
	}
	out, err := ctx.BindOutput(det.out)
	if err != nil {
		return err
	}

	m.bound = &flickerBound{
		enable: enable,
		tOn:    onAlloc.Address,
		tOff:   offAlloc.Address,
		kOn:    onAlloc.Timer.KValue,
		kOff:   offAlloc.Timer.KValue,
		out:    out,
	}
	ctx.SetDriver(det.out, onAlloc.Address)
	return nil
}

// cyclicEnable picks the run condition for a self-retriggering pair:
// the first declared input, self-held against the last input when two
// or more are declared, else the raw contact.
func cyclicEnable(ctx *Context) (device.Address, error) {
	inputs := ctx.Spec.Inputs
	if len(inputs) == 0 {
		return device.Address{}, &UnresolvedTriggerError{Ref: "enable"}
	}
	if len(inputs) >= 2 && !ctx.HasStop() {
		ctx.SetStopName(inputs[len(inputs)-1].Name)
	}
	return ctx.ResolveEnable(inputs[0].Name)
}

func (p *Flicker) Emit(m *Match, ctx *Context) error {
	det := m.det.(*flickerDet)
	b := m.bound.(*flickerBound)

	ctx.Builder.AddRung(
		fmt.Sprintf("flicker on timer (%s)", det.out),
		ladder.SeriesOf(ladder.NOContact(b.enable), ladder.NCContact(b.tOff)),
		ladder.TimerCoil{Device: b.tOn, K: b.kOn},
	)
	ctx.Builder.AddTimerRung(b.tOn, b.tOff, b.kOff,
		fmt.Sprintf("flicker off timer (%s)", det.out))
	ctx.Builder.AddStageGatedRung(b.tOn, b.tOff, b.out,
		fmt.Sprintf("%s flicker output", det.out))
	return nil
}
