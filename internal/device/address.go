package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Class identifies a MELSEC device class by its mnemonic letter.
type Class string

const (
	ClassInput    Class = "X" // physical input
	ClassOutput   Class = "Y" // physical output
	ClassRelay    Class = "M" // internal auxiliary relay
	ClassTimer    Class = "T"
	ClassCounter  Class = "C"
	ClassRegister Class = "D" // data register
)

// Classes lists every device class in canonical order.
var Classes = []Class{ClassInput, ClassOutput, ClassRelay, ClassTimer, ClassCounter, ClassRegister}

// Octal reports whether the class renders its number in base 8.
// X/Y terminals are numbered octally on MELSEC-Q hardware.
func (c Class) Octal() bool {
	return c == ClassInput || c == ClassOutput
}

// Valid reports whether c is one of the known device classes.
func (c Class) Valid() bool {
	switch c {
	case ClassInput, ClassOutput, ClassRelay, ClassTimer, ClassCounter, ClassRegister:
		return true
	}
	return false
}

// Address is a (class, number) pair. Number is the internal sequential
// index; the octal/decimal distinction only exists in the text form.
type Address struct {
	Class  Class `json:"class"`
	Number int   `json:"number"`
}

// String renders the address in GX Works2 text form, e.g. X10 for the
// 8th input, M3, T0.
func (a Address) String() string {
	if a.Class.Octal() {
		return string(a.Class) + strconv.FormatInt(int64(a.Number), 8)
	}
	return string(a.Class) + strconv.Itoa(a.Number)
}

// ParseAddress parses a device string like "X17", "M10" or "T0".
// Octal classes are parsed base 8, so "X8" is rejected.
func ParseAddress(s string) (Address, error) {
	if len(s) < 2 {
		return Address{}, fmt.Errorf("invalid device %q", s)
	}
	class := Class(strings.ToUpper(s[:1]))
	if !class.Valid() {
		return Address{}, fmt.Errorf("unknown device class %q", s[:1])
	}
	base := 10
	if class.Octal() {
		base = 8
	}
	n, err := strconv.ParseInt(s[1:], base, 32)
	if err != nil || n < 0 {
		return Address{}, fmt.Errorf("invalid device number %q", s)
	}
	return Address{Class: class, Number: int(n)}, nil
}
