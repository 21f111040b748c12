package types

import "strings"

// InputKind classifies an input signal.
type InputKind string

const (
	InputPushButton  InputKind = "push_button"
	InputToggle      InputKind = "toggle_switch"
	InputSensor      InputKind = "sensor"
	InputLimitSwitch InputKind = "limit_switch"
)

// InputMode distinguishes momentary from maintained inputs. Momentary
// inputs need a latch relay to keep a state alive after release.
type InputMode string

const (
	ModeMomentary  InputMode = "momentary"
	ModeMaintained InputMode = "maintained"
)

// OutputKind classifies an output signal.
type OutputKind string

const (
	OutputLamp     OutputKind = "lamp"
	OutputMotor    OutputKind = "motor"
	OutputBuzzer   OutputKind = "buzzer"
	OutputSolenoid OutputKind = "solenoid"
	OutputPump     OutputKind = "pump"
	OutputRelay    OutputKind = "relay"
)

// InputSignal declares a named input of the controlled machine.
type InputSignal struct {
	Name    string    `json:"name"`
	Kind    InputKind `json:"type,omitempty"`
	Mode    InputMode `json:"mode,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

// OutputSignal declares a named output.
type OutputSignal struct {
	Name    string     `json:"name"`
	Kind    OutputKind `json:"type,omitempty"`
	Comment string     `json:"comment,omitempty"`
}

// Event is one behavioral fact: when Trigger happens, after Delay
// seconds, Action occurs. Trigger is a signal name or a "NAME ON"
// completion reference; Action is "NAME ON", "NAME OFF", "NAME FLICKER"
// or "ALL OFF". A zero delay means immediately.
type Event struct {
	Trigger string  `json:"trigger"`
	Delay   float64 `json:"delay,omitempty"`
	Action  string  `json:"action"`
}

// Delayed reports whether the event carries a real delay.
func (e Event) Delayed() bool { return e.Delay > 0 }

// TimingSpec is the full behavioral description handed to the pipeline
// by the front end. Immutable once parsed.
type TimingSpec struct {
	Description string         `json:"description"`
	Inputs      []InputSignal  `json:"inputs"`
	Outputs     []OutputSignal `json:"outputs"`
	Events      []Event        `json:"sequences"`
}

// Input finds a declared input by name.
func (t TimingSpec) Input(name string) (InputSignal, bool) {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSignal{}, false
}

// Output finds a declared output by name.
func (t TimingSpec) Output(name string) (OutputSignal, bool) {
	for _, out := range t.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return OutputSignal{}, false
}

// SplitRef splits a trigger/action reference into its signal name and
// verb, e.g. "RL ON" -> ("RL", "ON"), "PB1" -> ("PB1", "ON").
func SplitRef(ref string) (name, verb string) {
	fields := strings.Fields(strings.TrimSpace(ref))
	if len(fields) == 0 {
		return "", ""
	}
	name = fields[0]
	verb = "ON"
	if len(fields) > 1 {
		verb = strings.ToUpper(fields[1])
	}
	return name, verb
}

// IsAllOff reports whether the action is a global reset.
func IsAllOff(action string) bool {
	name, verb := SplitRef(action)
	return strings.EqualFold(name, "ALL") && verb == "OFF"
}
