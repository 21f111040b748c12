package pattern

import (
	"fmt"
	"strings"

	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/ladder"
	"github.com/openmelsec/laddergen/internal/types"
)

// UnresolvedTriggerError reports a trigger or action referencing a
// signal that is neither declared nor produced by any applied pattern.
type UnresolvedTriggerError struct {
	Ref string
}

func (e *UnresolvedTriggerError) Error() string {
	return fmt.Sprintf("trigger %q does not resolve to a declared signal or completion", e.Ref)
}

// stage records the timer that spans one chained-sequence interval,
// keyed by the signal active during it.
type stage struct {
	timer   device.Address
	seconds float64
}

// Context is the per-run binding state shared by all patterns of one
// compilation: the allocator, the builder, and the resolution tables
// that map signal names onto the contacts that drive them.
type Context struct {
	Spec    types.TimingSpec
	Alloc   *device.Allocator
	Builder *ladder.Builder

	drivers map[string]device.Address // signal name -> contact high from its onset
	latches map[string]device.Address // input name -> run-latch relay
	stages  map[string]stage          // signal name -> interval timer

	stopName string // input that resets everything, from full-reset
	stopAddr *device.Address

	latchRungs []latchRung // latch rungs pending emission, in bind order
}

type latchRung struct {
	start, stop, relay device.Address
	comment            string
}

// NewContext creates the binding context for one run.
func NewContext(spec types.TimingSpec, alloc *device.Allocator, builder *ladder.Builder) *Context {
	return &Context{
		Spec:    spec,
		Alloc:   alloc,
		Builder: builder,
		drivers: make(map[string]device.Address),
		latches: make(map[string]device.Address),
		stages:  make(map[string]stage),
	}
}

// SetStopName records which declared input acts as the global reset.
// The address is bound lazily, so a stop declared after the start
// button still numbers behind it.
func (c *Context) SetStopName(name string) {
	if c.stopName == "" {
		c.stopName = name
	}
}

// HasStop reports whether a global reset input is known.
func (c *Context) HasStop() bool { return c.stopName != "" }

// BindStop allocates (once) and returns the stop input contact.
func (c *Context) BindStop() (device.Address, error) {
	if c.stopAddr != nil {
		return *c.stopAddr, nil
	}
	if c.stopName == "" {
		return device.Address{}, &UnresolvedTriggerError{Ref: "stop"}
	}
	addr, err := c.BindInput(c.stopName)
	if err != nil {
		return device.Address{}, err
	}
	c.stopAddr = &addr
	return addr, nil
}

// BindInput allocates the X address for a declared input.
func (c *Context) BindInput(name string) (device.Address, error) {
	in, ok := c.Spec.Input(name)
	if !ok {
		return device.Address{}, &UnresolvedTriggerError{Ref: name}
	}
	comment := in.Comment
	if comment == "" {
		comment = name
	}
	alloc, err := c.Alloc.Allocate(name, device.ClassInput, comment)
	if err != nil {
		return device.Address{}, err
	}
	return alloc.Address, nil
}

// BindOutput allocates the Y address for a declared output. An action
// naming an undeclared signal is an unresolved reference.
func (c *Context) BindOutput(name string) (device.Address, error) {
	out, ok := c.Spec.Output(name)
	if !ok {
		return device.Address{}, &UnresolvedTriggerError{Ref: name}
	}
	comment := out.Comment
	if comment == "" {
		comment = name
	}
	alloc, err := c.Alloc.Allocate(name, device.ClassOutput, comment)
	if err != nil {
		return device.Address{}, err
	}
	return alloc.Address, nil
}

// EnsureLatch binds (once per start input) the self-hold circuit for a
// momentary start button: start contact, stop contact and the run-latch
// relay. The latch rung itself is emitted by EmitLatches in bind order.
func (c *Context) EnsureLatch(start string) (device.Address, error) {
	if relay, ok := c.latches[start]; ok {
		return relay, nil
	}
	startAddr, err := c.BindInput(start)
	if err != nil {
		return device.Address{}, err
	}
	stopAddr, err := c.BindStop()
	if err != nil {
		return device.Address{}, err
	}
	relayAlloc, err := c.Alloc.Allocate(
		"run_latch_"+strings.ToLower(start),
		device.ClassRelay,
		fmt.Sprintf("%s run latch", start),
	)
	if err != nil {
		return device.Address{}, err
	}
	relay := relayAlloc.Address
	c.latches[start] = relay
	c.latchRungs = append(c.latchRungs, latchRung{
		start:   startAddr,
		stop:    stopAddr,
		relay:   relay,
		comment: fmt.Sprintf("%s self-hold", start),
	})
	return relay, nil
}

// EmitLatches appends every pending latch rung once. Called before the
// first pattern emits so latches always lead the program.
func (c *Context) EmitLatches() {
	for _, lr := range c.latchRungs {
		c.Builder.AddSelfHoldRung(lr.start, lr.stop, lr.relay, lr.comment)
	}
	c.latchRungs = nil
}

// SetDriver records the contact that is high from the signal's onset.
func (c *Context) SetDriver(name string, addr device.Address) {
	if _, ok := c.drivers[name]; !ok {
		c.drivers[name] = addr
	}
}

// SetStage records the timer spanning the signal's active interval in a
// chained sequence.
func (c *Context) SetStage(name string, timer device.Address, seconds float64) {
	c.stages[name] = stage{timer: timer, seconds: seconds}
}

// StageTimer returns the interval timer for a chained-sequence signal
// when its span matches the requested delay.
func (c *Context) StageTimer(name string, seconds float64) (device.Address, bool) {
	st, ok := c.stages[name]
	if !ok || st.seconds != seconds {
		return device.Address{}, false
	}
	return st.timer, true
}

// Resolve maps a trigger reference onto the contact representing it: a
// pattern-produced driver, the run latch of a momentary input, or the
// raw input contact. Anything else is unresolved.
func (c *Context) Resolve(ref string) (device.Address, error) {
	name, _ := types.SplitRef(ref)
	if addr, ok := c.drivers[name]; ok {
		return addr, nil
	}
	if relay, ok := c.latches[name]; ok {
		return relay, nil
	}
	if _, ok := c.Spec.Input(name); ok {
		return c.BindInput(name)
	}
	return device.Address{}, &UnresolvedTriggerError{Ref: ref}
}

// ResolveEnable resolves a trigger like Resolve, but a momentary input
// with a known stop is first latched so the condition survives button
// release.
func (c *Context) ResolveEnable(ref string) (device.Address, error) {
	name, _ := types.SplitRef(ref)
	if addr, ok := c.drivers[name]; ok {
		return addr, nil
	}
	if in, ok := c.Spec.Input(name); ok {
		if in.Mode != types.ModeMaintained && c.HasStop() {
			return c.EnsureLatch(name)
		}
		return c.BindInput(name)
	}
	return c.Resolve(ref)
}
