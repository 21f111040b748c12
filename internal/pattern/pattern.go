// Package pattern recognizes canonical control topologies in a timing
// description and turns them into ladder rungs. The pattern set is
// closed: self-hold, timer-delay, sequential chain, full-reset, flicker,
// plus a generic fallback for anything unclaimed.
package pattern

import (
	"fmt"
	"sort"

	"github.com/openmelsec/laddergen/internal/types"
)

// Pattern is one detection/binding/emission strategy.
type Pattern interface {
	Name() string
	// Priority breaks ties between overlapping matches of equal
	// confidence; higher wins.
	Priority() int
	// Detect proposes matches over the events not yet claimed by
	// another pattern. Detect must not mutate the set.
	Detect(spec types.TimingSpec, free *EventSet) []*Match
	// Bind allocates every device the match needs and records the
	// bindings on the match. Bind order across matches fixes the
	// device numbering.
	Bind(m *Match, ctx *Context) error
	// Emit appends the match's rungs to the builder using the
	// bindings from Bind.
	Emit(m *Match, ctx *Context) error
}

// Match is one detected topology: the pattern, its confidence and the
// disjoint subset of events it explains.
type Match struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	Events     []int   `json:"events"`

	priority int
	pattern  Pattern
	det      any // detection payload, owned by the pattern
	bound    any // binding payload, owned by the pattern
}

func (m *Match) first() int {
	if len(m.Events) == 0 {
		return 1 << 30
	}
	return m.Events[0]
}

func (m *Match) overlaps(o *Match) bool {
	for _, a := range m.Events {
		for _, b := range o.Events {
			if a == b {
				return true
			}
		}
	}
	return false
}

// EventSet tracks which events are still unclaimed during partitioning.
type EventSet struct {
	used []bool
}

func NewEventSet(n int) *EventSet {
	return &EventSet{used: make([]bool, n)}
}

// Free reports whether event i is unclaimed.
func (s *EventSet) Free(i int) bool {
	return i >= 0 && i < len(s.used) && !s.used[i]
}

// Claim marks the events as consumed.
func (s *EventSet) Claim(events ...int) {
	for _, i := range events {
		s.used[i] = true
	}
}

// AmbiguousMatchError reports two patterns claiming the same event with
// equal confidence and no applicable resolution rule.
type AmbiguousMatchError struct {
	Kinds      [2]string
	Confidence float64
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("patterns %s and %s claim overlapping events with equal confidence %.2f",
		e.Kinds[0], e.Kinds[1], e.Confidence)
}

// Resolver arbitrates between two overlapping matches of equal
// confidence and priority. The default policy has none and reports
// AmbiguousMatchError instead of guessing.
type Resolver func(a, b *Match) (*Match, error)

// Library is an ordered set of patterns, constructed once and passed
// into every compilation call. It carries no per-run state.
type Library struct {
	patterns []Pattern
	resolve  Resolver
}

// Option configures a Library.
type Option func(*Library)

// WithResolver overrides the overlap tie-break policy.
func WithResolver(r Resolver) Option {
	return func(l *Library) { l.resolve = r }
}

// WithPatterns replaces the default pattern set.
func WithPatterns(ps ...Pattern) Option {
	return func(l *Library) { l.patterns = ps }
}

// NewLibrary builds the default library: the closed pattern set in
// fixed priority order with the generic fallback last.
func NewLibrary(opts ...Option) *Library {
	l := &Library{
		patterns: []Pattern{
			&Sequential{},
			&Flicker{},
			&SelfHold{},
			&TimerDelay{},
			&FullReset{},
			&Generic{},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Partition greedily assigns every event to at most one pattern.
// Candidates are ranked by confidence, then pattern priority, then
// earliest claimed event; the winner's events are consumed and the scan
// repeats until nothing matches. Equal-confidence, equal-priority
// overlap is an error unless a resolver is installed.
func (l *Library) Partition(spec types.TimingSpec) ([]*Match, error) {
	free := NewEventSet(len(spec.Events))
	var accepted []*Match

	for {
		var candidates []*Match
		for _, p := range l.patterns {
			for _, m := range p.Detect(spec, free) {
				m.priority = p.Priority()
				m.pattern = p
				candidates = append(candidates, m)
			}
		}
		if len(candidates) == 0 {
			break
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Confidence != b.Confidence {
				return a.Confidence > b.Confidence
			}
			if a.priority != b.priority {
				return a.priority > b.priority
			}
			return a.first() < b.first()
		})

		best := candidates[0]
		for _, other := range candidates[1:] {
			if !best.overlaps(other) {
				continue
			}
			if other.Confidence == best.Confidence && other.priority == best.priority && other.Kind != best.Kind {
				if l.resolve == nil {
					return nil, &AmbiguousMatchError{
						Kinds:      [2]string{best.Kind, other.Kind},
						Confidence: best.Confidence,
					}
				}
				winner, err := l.resolve(best, other)
				if err != nil {
					return nil, err
				}
				best = winner
			}
		}

		free.Claim(best.Events...)
		accepted = append(accepted, best)
	}

	// Application order is canonical and deterministic: reset wiring
	// first, then latches, chains, single timers, flicker, fallback.
	sort.SliceStable(accepted, func(i, j int) bool {
		ri, rj := kindRank(accepted[i].Kind), kindRank(accepted[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return accepted[i].first() < accepted[j].first()
	})
	return accepted, nil
}

func kindRank(kind string) int {
	switch kind {
	case KindFullReset:
		return 0
	case KindSelfHold:
		return 1
	case KindSequential:
		return 2
	case KindTimerDelay:
		return 3
	case KindFlicker:
		return 4
	default:
		return 5
	}
}

// Apply binds then emits every match in application order. Binding all
// matches before emitting keeps device numbering independent of rung
// interleaving.
func (l *Library) Apply(matches []*Match, ctx *Context) error {
	for _, m := range matches {
		if err := m.pattern.Bind(m, ctx); err != nil {
			return err
		}
	}
	ctx.EmitLatches()
	for _, m := range matches {
		if err := m.pattern.Emit(m, ctx); err != nil {
			return err
		}
		ctx.Builder.MarkPattern(m.Kind)
	}
	return nil
}

// Detected summarizes one match for analysis output.
type Detected struct {
	Kind       string  `json:"pattern_type"`
	Confidence float64 `json:"confidence"`
	Events     []int   `json:"events"`
}

// Analysis is the detection-only view of a timing description.
type Analysis struct {
	Patterns      []Detected `json:"detected_patterns"`
	HasSelfHold   bool       `json:"has_self_hold"`
	HasTimer      bool       `json:"has_timer"`
	HasSequential bool       `json:"has_sequential"`
	HasFlicker    bool       `json:"has_flicker"`
	HasFullReset  bool       `json:"has_full_reset"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// Analyze partitions the events without binding or emitting anything.
func (l *Library) Analyze(spec types.TimingSpec) (Analysis, error) {
	matches, err := l.Partition(spec)
	if err != nil {
		return Analysis{}, err
	}
	a := Analysis{}
	for _, m := range matches {
		a.Patterns = append(a.Patterns, Detected{Kind: m.Kind, Confidence: m.Confidence, Events: m.Events})
		switch m.Kind {
		case KindSelfHold:
			a.HasSelfHold = true
		case KindTimerDelay:
			a.HasTimer = true
		case KindSequential:
			a.HasSequential = true
			a.HasTimer = true
		case KindFlicker:
			a.HasFlicker = true
		case KindFullReset:
			a.HasFullReset = true
		case KindGeneric:
			a.Warnings = append(a.Warnings,
				fmt.Sprintf("events %v matched no canonical pattern; wired directly", m.Events))
		}
	}
	return a, nil
}
