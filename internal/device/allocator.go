package device

import (
	"fmt"
)

// Default per-class ceilings for a small Q-series target:
// X0-X37 / Y0-Y37 (octal, 32 points each), M/T/C/D 0-99.
var defaultLimits = map[Class]int{
	ClassInput:    32,
	ClassOutput:   32,
	ClassRelay:    100,
	ClassTimer:    100,
	ClassCounter:  100,
	ClassRegister: 100,
}

// Config controls a single allocator instance.
type Config struct {
	// Limits caps the number of addresses per class. Missing classes
	// fall back to the target defaults.
	Limits map[Class]int
	// Starts shifts the first allocated number per class (e.g. wire
	// inputs starting at X1 instead of X0).
	Starts map[Class]int
	// Resolution is the timer tick factor: K = seconds * Resolution.
	// 10 for a 100 ms tick target.
	Resolution int
}

// DefaultConfig returns the stock Q-series allocator configuration.
func DefaultConfig() Config {
	return Config{Resolution: 10}
}

func (c Config) limit(class Class) int {
	if n, ok := c.Limits[class]; ok {
		return n
	}
	return defaultLimits[class]
}

func (c Config) start(class Class) int {
	return c.Starts[class]
}

func (c Config) resolution() int {
	if c.Resolution <= 0 {
		return 10
	}
	return c.Resolution
}

// ExhaustedError is returned when a device class has no free addresses
// left below its configured ceiling.
type ExhaustedError struct {
	Class Class
	Limit int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("device class %s exhausted (limit %d)", e.Class, e.Limit)
}

// TimerPreset records the K value derived for a timer allocation.
type TimerPreset struct {
	KValue  int     `json:"k_value"`
	Seconds float64 `json:"seconds"`
}

// Allocation binds one logical name to a concrete device address.
type Allocation struct {
	Name    string       `json:"name"`
	Address Address      `json:"address"`
	Comment string       `json:"comment,omitempty"`
	Timer   *TimerPreset `json:"timer,omitempty"`
}

// Allocator hands out device addresses monotonically per class. It is
// request-scoped: one allocator per compilation run, never shared.
type Allocator struct {
	cfg         Config
	next        map[Class]int
	allocations []Allocation
	byName      map[string]int
}

// NewAllocator creates an empty allocator for one compilation run.
func NewAllocator(cfg Config) *Allocator {
	next := make(map[Class]int, len(Classes))
	for _, class := range Classes {
		next[class] = cfg.start(class)
	}
	return &Allocator{
		cfg:    cfg,
		next:   next,
		byName: make(map[string]int),
	}
}

// Allocate assigns the next free address of the class to the logical
// name. Allocating an already-known name returns the existing binding
// unchanged, so patterns may bind shared signals independently.
func (a *Allocator) Allocate(name string, class Class, comment string) (Allocation, error) {
	if idx, ok := a.byName[name]; ok {
		return a.allocations[idx], nil
	}
	limit := a.cfg.limit(class)
	n := a.next[class]
	if n >= limit {
		return Allocation{}, &ExhaustedError{Class: class, Limit: limit}
	}
	a.next[class] = n + 1

	alloc := Allocation{
		Name:    name,
		Address: Address{Class: class, Number: n},
		Comment: comment,
	}
	a.byName[name] = len(a.allocations)
	a.allocations = append(a.allocations, alloc)
	return alloc, nil
}

// AllocateTimer allocates a timer device and derives its K preset from
// the delay in seconds. Presets always round down to whole ticks but
// never below K1.
func (a *Allocator) AllocateTimer(name string, seconds float64, comment string) (Allocation, error) {
	if idx, ok := a.byName[name]; ok {
		return a.allocations[idx], nil
	}
	alloc, err := a.Allocate(name, ClassTimer, comment)
	if err != nil {
		return Allocation{}, err
	}
	k := int(seconds * float64(a.cfg.resolution()))
	if k <= 0 {
		k = 1
	}
	preset := &TimerPreset{KValue: k, Seconds: seconds}
	a.allocations[a.byName[name]].Timer = preset
	alloc.Timer = preset
	return alloc, nil
}

// Lookup returns the allocation for a logical name, if any.
func (a *Allocator) Lookup(name string) (Allocation, bool) {
	idx, ok := a.byName[name]
	if !ok {
		return Allocation{}, false
	}
	return a.allocations[idx], true
}

// Map freezes the current allocations into an immutable DeviceMap.
func (a *Allocator) Map() Map {
	allocs := make([]Allocation, len(a.allocations))
	copy(allocs, a.allocations)
	return Map{Allocations: allocs}
}
