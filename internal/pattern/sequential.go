package pattern

import (
	"fmt"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/types"
)

// Sequential matches a chain of delayed actions whose triggers are each
// other's completions (A on, +d1 B on, +d2 C on ...). Each stage timer
// is keyed off the previous timer's completion contact, so delays add
// up; collapsing the chain onto one shared source would start every
// timer at t=0 and change the elapsed times. Stage outputs are gated on
// the interval between boundaries:
//
//	LD  M0 / OUT T0 Kd1       stage 1 timer
//	LD  M0 / ANI T0 / OUT Y0  stage 1 output
//	LD  T0 / OUT T1 Kd2       stage 2 timer, chained off T0
//	LD  T0 / ANI T1 / OUT Y1
//	LD  T1 / OUT Y2           terminal output
type Sequential struct{}

func (*Sequential) Name() string  { return KindSequential }
func (*Sequential) Priority() int { return 20 }

type sequentialDet struct {
	root  int   // immediate event producing the first stage signal, or -1
	steps []int // delayed chain events in order
}

type seqStage struct {
	name    string
	enable  device.Address
	timer   device.Address
	k       int
	seconds float64
	out     *device.Address
}

type sequentialBound struct {
	stages   []seqStage
	termName string
	termOut  *device.Address
	lastT    device.Address
}

func (p *Sequential) Detect(spec types.TimingSpec, free *EventSet) []*Match {
	// Candidate links: unclaimed delayed on-events, keyed by trigger name.
	type link struct {
		idx      int
		trig, ac string
	}
	var links []link
	isAction := map[string]bool{}
	for i, ev := range spec.Events {
		if !free.Free(i) || !ev.Delayed() || types.IsAllOff(ev.Action) {
			continue
		}
		acName, verb := types.SplitRef(ev.Action)
		if verb != "ON" {
			continue
		}
		trigName, _ := types.SplitRef(ev.Trigger)
		links = append(links, link{idx: i, trig: trigName, ac: acName})
		isAction[acName] = true
	}

	var matches []*Match
	for _, head := range links {
		if isAction[head.trig] {
			continue // not a chain head
		}
		visited := map[string]bool{head.trig: true}
		steps := []int{head.idx}
		cur := head
		for {
			next := link{idx: -1}
			for _, cand := range links {
				if cand.trig == cur.ac && !visited[cand.ac] {
					next = cand
					break
				}
			}
			if next.idx < 0 {
				break
			}
			visited[next.trig] = true
			steps = append(steps, next.idx)
			cur = next
		}
		if len(steps) < 2 {
			continue
		}

		det := &sequentialDet{root: -1, steps: steps}
		events := append([]int(nil), steps...)

		// Absorb the immediate event that switches the first stage on.
		for i, ev := range spec.Events {
			if !free.Free(i) || ev.Delayed() {
				continue
			}
			acName, verb := types.SplitRef(ev.Action)
			if verb == "ON" && acName == head.trig {
				det.root = i
				events = append([]int{i}, events...)
				break
			}
		}

		conf := 0.6 + 0.1*float64(len(steps))
		if conf > 0.95 {
			conf = 0.95
		}
		matches = append(matches, &Match{
			Kind:       KindSequential,
			Confidence: conf,
			Events:     events,
			det:        det,
		})
	}
	return matches
}

func (p *Sequential) Bind(m *Match, ctx *Context) error {
	det := m.det.(*sequentialDet)
	bound := &sequentialBound{}

	var enable device.Address
	var err error
	if det.root >= 0 {
		enable, err = ctx.ResolveEnable(ctx.Spec.Events[det.root].Trigger)
	} else {
		enable, err = ctx.ResolveEnable(ctx.Spec.Events[det.steps[0]].Trigger)
	}
	if err != nil {
		return err
	}

	for _, stepIdx := range det.steps {
		ev := ctx.Spec.Events[stepIdx]
		name, _ := types.SplitRef(ev.Trigger)

		timerAlloc, err := ctx.Alloc.AllocateTimer(
			"stage_"+strings.ToLower(name),
			ev.Delay,
			fmt.Sprintf("%gs stage timer (%s)", ev.Delay, name),
		)
		if err != nil {
			return err
		}

		st := seqStage{
			name:    name,
			enable:  enable,
			timer:   timerAlloc.Address,
			k:       timerAlloc.Timer.KValue,
			seconds: ev.Delay,
		}
		if _, declared := ctx.Spec.Output(name); declared {
			out, err := ctx.BindOutput(name)
			if err != nil {
				return err
			}
			st.out = &out
		}
		ctx.SetDriver(name, enable)
		ctx.SetStage(name, timerAlloc.Address, ev.Delay)
		bound.stages = append(bound.stages, st)
		enable = timerAlloc.Address
	}

	last := ctx.Spec.Events[det.steps[len(det.steps)-1]]
	bound.termName, _ = types.SplitRef(last.Action)
	bound.lastT = enable
	if _, declared := ctx.Spec.Output(bound.termName); declared {
		out, err := ctx.BindOutput(bound.termName)
		if err != nil {
			return err
		}
		bound.termOut = &out
	}
	ctx.SetDriver(bound.termName, bound.lastT)

	m.bound = bound
	return nil
}

func (p *Sequential) Emit(m *Match, ctx *Context) error {
	bound := m.bound.(*sequentialBound)
	for _, st := range bound.stages {
		ctx.Builder.AddTimerRung(st.enable, st.timer, st.k,
			fmt.Sprintf("%gs stage timer (%s)", st.seconds, st.name))
		if st.out != nil {
			ctx.Builder.AddStageGatedRung(st.enable, st.timer, *st.out,
				fmt.Sprintf("%s output", st.name))
		}
	}
	if bound.termOut != nil {
		ctx.Builder.AddOutputRung(bound.lastT, *bound.termOut,
			fmt.Sprintf("%s output", bound.termName))
	}
	return nil
}
