// Package ladder holds the circuit-level intermediate representation:
// rungs whose condition side is a tree of contacts combined in series
// and parallel, feeding one or more output elements.
package ladder

import (
	"github.com/openmelsec/laddergen/internal/device"
)

// ContactMode is the polarity of a contact.
type ContactMode string

const (
	NO ContactMode = "no" // normally open
	NC ContactMode = "nc" // normally closed
)

// Node is one vertex of a condition network: a Contact leaf or a
// Series/Parallel composite.
type Node interface {
	node()
}

// Contact is a single device contact with a polarity.
type Contact struct {
	Device device.Address `json:"device"`
	Mode   ContactMode    `json:"mode"`
}

// Series combines its children left to right with AND logic. Operand
// order is preserved into the emitted instruction order.
type Series struct {
	Nodes []Node `json:"nodes"`
}

// Parallel combines its children top to bottom with OR logic.
type Parallel struct {
	Nodes []Node `json:"nodes"`
}

func (Contact) node()  {}
func (Series) node()   {}
func (Parallel) node() {}

// NOContact returns a normally-open contact for the address.
func NOContact(addr device.Address) Contact {
	return Contact{Device: addr, Mode: NO}
}

// NCContact returns a normally-closed contact for the address.
func NCContact(addr device.Address) Contact {
	return Contact{Device: addr, Mode: NC}
}

// SeriesOf builds a series composite. A single node is returned as-is;
// composition is associative but operand order is significant.
func SeriesOf(nodes ...Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return Series{Nodes: nodes}
}

// ParallelOf builds a parallel composite with the same conventions.
func ParallelOf(nodes ...Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return Parallel{Nodes: nodes}
}

// Output is the element on the right-hand side of a rung.
type Output interface {
	output()
}

// Coil drives a plain output or relay coil (OUT).
type Coil struct {
	Device device.Address `json:"device"`
}

// TimerCoil drives a timer with a K preset in target ticks.
type TimerCoil struct {
	Device device.Address `json:"device"`
	K      int            `json:"k"`
}

// CounterCoil drives a counter with a K preset.
type CounterCoil struct {
	Device device.Address `json:"device"`
	K      int            `json:"k"`
}

// SetCoil latches a device on (SET).
type SetCoil struct {
	Device device.Address `json:"device"`
}

// ResetCoil forces a device off (RST).
type ResetCoil struct {
	Device device.Address `json:"device"`
}

func (Coil) output()        {}
func (TimerCoil) output()   {}
func (CounterCoil) output() {}
func (SetCoil) output()     {}
func (ResetCoil) output()   {}

// Rung is the unit of compilation: one condition network feeding one or
// more outputs. Multiple outputs share the condition via the branch
// stack (MPS/MRD/MPP) when compiled.
type Rung struct {
	Number    int      `json:"number"`
	Comment   string   `json:"comment,omitempty"`
	Condition Node     `json:"condition"`
	Outputs   []Output `json:"outputs"`
}

// Program is a complete ladder program: rungs in fixed emission order
// plus the device map of the run that produced them.
type Program struct {
	Name      string     `json:"name"`
	Rungs     []Rung     `json:"rungs"`
	DeviceMap device.Map `json:"device_map"`
	Patterns  []string   `json:"detected_patterns,omitempty"`
}
