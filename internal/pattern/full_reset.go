package pattern

import (
	"github.com/openmelsec/laddergen/internal/types"
)

// Pattern kind tags, the closed set.
const (
	KindSelfHold   = "self_hold"
	KindTimerDelay = "timer_delay"
	KindSequential = "sequential"
	KindFullReset  = "full_reset"
	KindFlicker    = "flicker"
	KindGeneric    = "generic"
)

// FullReset matches an "ALL OFF" action bound to a trigger. It emits no
// rung of its own: it contributes the normally-closed stop contact that
// every latch rung ANDs into its hold condition.
type FullReset struct{}

func (*FullReset) Name() string  { return KindFullReset }
func (*FullReset) Priority() int { return 3 }

type fullResetDet struct {
	event int
}

func (p *FullReset) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	for i, ev := range spec.Events {
		if !free.Free(i) || !types.IsAllOff(ev.Action) {
			continue
		}
		return []*Match{{
			Kind:       KindFullReset,
			Confidence: 0.9,
			Events:     []int{i},
			det:        &fullResetDet{event: i},
		}}
	}
	return nil
}

func (p *FullReset) Bind(m *Match, ctx *Context) error {
	det := m.det.(*fullResetDet)
	name, _ := types.SplitRef(ctx.Spec.Events[det.event].Trigger)
	if _, ok := ctx.Spec.Input(name); !ok {
		return &UnresolvedTriggerError{Ref: ctx.Spec.Events[det.event].Trigger}
	}
	ctx.SetStopName(name)
	return nil
}

func (p *FullReset) Emit(m *Match, ctx *Context) error {
	// The reset logic lives in the NC stop contact of the latch rungs.
	return nil
}
