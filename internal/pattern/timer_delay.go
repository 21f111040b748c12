package pattern

import (
	"fmt"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/types"
)

// TimerDelay matches a single delayed action: source on, N seconds
// later target on. Emitted circuit:
//
//	LD  M0          source contact
//	OUT T0 K50      preset = seconds * tick factor
//	LD  T0
//	OUT Y1          target output
//
// Several delays measured from the same source stay independent timers;
// chaining is the sequential pattern's job.
type TimerDelay struct{}

func (*TimerDelay) Name() string  { return KindTimerDelay }
func (*TimerDelay) Priority() int { return 5 }

type timerDelayDet struct {
	event int
}

type timerDelayBound struct {
	source device.Address
	timer  device.Address
	k      int
	out    device.Address
}

func (p *TimerDelay) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	var matches []*Match
	for i, ev := range spec.Events {
		if !free.Free(i) || !ev.Delayed() || types.IsAllOff(ev.Action) {
			continue
		}
		name, verb := types.SplitRef(ev.Action)
		if verb != "ON" {
			continue
		}
		if _, ok := spec.Output(name); !ok {
			continue
		}
		matches = append(matches, &Match{
			Kind:       KindTimerDelay,
			Confidence: 0.6,
			Events:     []int{i},
			det:        &timerDelayDet{event: i},
		})
	}
	return matches
}

func (p *TimerDelay) Bind(m *Match, ctx *Context) error {
	det := m.det.(*timerDelayDet)
	ev := ctx.Spec.Events[det.event]
	outName, _ := types.SplitRef(ev.Action)

	source, err := ctx.ResolveEnable(ev.Trigger)
	if err != nil {
		return err
	}
	timerAlloc, err := ctx.Alloc.AllocateTimer(
		"delay_"+outName,
		ev.Delay,
		fmt.Sprintf("%gs delay for %s", ev.Delay, outName),
	)
	if err != nil {
		return err
	}
	out, err := ctx.BindOutput(outName)
	if err != nil {
		return err
	}

	m.bound = &timerDelayBound{
		source: source,
		timer:  timerAlloc.Address,
		k:      timerAlloc.Timer.KValue,
		out:    out,
	}
	ctx.SetDriver(outName, timerAlloc.Address)
	return nil
}

func (p *TimerDelay) Emit(m *Match, ctx *Context) error {
	det := m.det.(*timerDelayDet)
	bound := m.bound.(*timerDelayBound)
	ev := ctx.Spec.Events[det.event]
	outName, _ := types.SplitRef(ev.Action)

	ctx.Builder.AddTimerRung(bound.source, bound.timer, bound.k,
		fmt.Sprintf("%gs timer for %s", ev.Delay, outName))
	ctx.Builder.AddOutputRung(bound.timer, bound.out, fmt.Sprintf("%s output", outName))
	return nil
}
