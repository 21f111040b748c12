package pattern

import (
	"fmt"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/types"
)

// Generic is the fallback for trigger/action pairs no canonical pattern
// claims: one rung wiring the trigger contact straight to the action,
// with no intermediate relay.
type Generic struct{}

func (*Generic) Name() string  { return KindGeneric }
func (*Generic) Priority() int { return 0 }

type genericDet struct {
	event int
}

type genericBound struct {
	source device.Address
	target device.Address
	off    bool
}

func (p *Generic) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	var matches []*Match
	for i, ev := range spec.Events {
		if !free.Free(i) || types.IsAllOff(ev.Action) {
			continue
		}
		matches = append(matches, &Match{
			Kind:       KindGeneric,
			Confidence: 0.3,
			Events:     []int{i},
			det:        &genericDet{event: i},
		})
	}
	return matches
}

func (p *Generic) Bind(m *Match, ctx *Context) error {
	det := m.det.(*genericDet)
	ev := ctx.Spec.Events[det.event]
	name, verb := types.SplitRef(ev.Action)

	source, err := ctx.Resolve(ev.Trigger)
	if err != nil {
		return err
	}
	target, err := ctx.BindOutput(name)
	if err != nil {
		return err
	}

	m.bound = &genericBound{source: source, target: target, off: verb == "OFF"}
	if verb != "OFF" {
		ctx.SetDriver(name, source)
	}
	return nil
}

func (p *Generic) Emit(m *Match, ctx *Context) error {
	det := m.det.(*genericDet)
	b := m.bound.(*genericBound)
	name, _ := types.SplitRef(ctx.Spec.Events[det.event].Action)
	if b.off {
		ctx.Builder.AddResetRung(b.source, b.target, fmt.Sprintf("%s off", name))
		return nil
	}
	ctx.Builder.AddOutputRung(b.source, b.target, fmt.Sprintf("%s output", name))
	return nil
}
