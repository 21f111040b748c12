package pattern

import (
	"fmt"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/types"
)

// SelfHold matches a momentary trigger that turns outputs on with no
// delay, stopped by a global reset or by an explicit off event for the
// same signal. Emitted circuit:
//
//	LD  X0      start button
//	OR  M0      run latch
//	ANI X1      stop button
//	OUT M0
//	LD  M0
//	OUT Y0      per held output
type SelfHold struct{}

func (*SelfHold) Name() string  { return KindSelfHold }
func (*SelfHold) Priority() int { return 10 }

type selfHoldDet struct {
	start    string // the start input
	onEvents []int  // immediate on-events keyed by the start input
	offEvent int    // same-signal off event claimed, or -1 (global reset)
}

type selfHoldBound struct {
	relay device.Address
	outs  []device.Address // parallel to det.onEvents
}

func (p *SelfHold) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	// Anchor on the first unclaimed immediate on-event triggered by a
	// declared input.
	for i, ev := range spec.Events {
		if !free.Free(i) || ev.Delayed() || types.IsAllOff(ev.Action) {
			continue
		}
		actName, verb := types.SplitRef(ev.Action)
		if verb != "ON" {
			continue
		}
		trigName, _ := types.SplitRef(ev.Trigger)
		if _, ok := spec.Input(trigName); !ok {
			continue
		}
		if _, ok := spec.Output(actName); !ok {
			continue
		}

		det := &selfHoldDet{start: trigName, onEvents: []int{i}, offEvent: -1}
		events := []int{i}

		// Absorb the remaining immediate outputs of the same trigger.
		for j := i + 1; j < len(spec.Events); j++ {
			ev2 := spec.Events[j]
			if !free.Free(j) || ev2.Delayed() || types.IsAllOff(ev2.Action) {
				continue
			}
			n2, v2 := types.SplitRef(ev2.Trigger)
			a2, av2 := types.SplitRef(ev2.Action)
			if n2 != trigName || v2 != "ON" || av2 != "ON" {
				continue
			}
			if _, ok := spec.Output(a2); !ok {
				continue
			}
			det.onEvents = append(det.onEvents, j)
			events = append(events, j)
		}

		// A latch needs a release: a same-signal off event (claimed
		// here) or a global reset (owned by full-reset).
		hasStop := false
		for j, ev2 := range spec.Events {
			if types.IsAllOff(ev2.Action) {
				hasStop = true
				break
			}
			a2, v2 := types.SplitRef(ev2.Action)
			if free.Free(j) && a2 == actName && v2 == "OFF" {
				det.offEvent = j
				events = append(events, j)
				hasStop = true
				break
			}
		}
		if !hasStop {
			continue
		}

		return []*Match{{
			Kind:       KindSelfHold,
			Confidence: 0.8,
			Events:     events,
			det:        det,
		}}
	}
	return nil
}

func (p *SelfHold) Bind(m *Match, ctx *Context) error {
	det := m.det.(*selfHoldDet)

	if det.offEvent >= 0 && !ctx.HasStop() {
		name, _ := types.SplitRef(ctx.Spec.Events[det.offEvent].Trigger)
		if _, ok := ctx.Spec.Input(name); !ok {
			return &UnresolvedTriggerError{Ref: ctx.Spec.Events[det.offEvent].Trigger}
		}
		ctx.SetStopName(name)
	}

	relay, err := ctx.EnsureLatch(det.start)
	if err != nil {
		return err
	}

	bound := &selfHoldBound{relay: relay}
	for _, idx := range det.onEvents {
		name, _ := types.SplitRef(ctx.Spec.Events[idx].Action)
		out, err := ctx.BindOutput(name)
		if err != nil {
			return err
		}
		bound.outs = append(bound.outs, out)
		ctx.SetDriver(name, relay)
	}
	m.bound = bound
	return nil
}

func (p *SelfHold) Emit(m *Match, ctx *Context) error {
	det := m.det.(*selfHoldDet)
	bound := m.bound.(*selfHoldBound)
	for i, out := range bound.outs {
		name, _ := types.SplitRef(ctx.Spec.Events[det.onEvents[i]].Action)
		ctx.Builder.AddOutputRung(bound.relay, out, fmt.Sprintf("%s output", name))
	}
	return nil
}
