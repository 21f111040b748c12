package device

// Map is the immutable-after-build mapping from logical names to device
// addresses for one compiled program, in allocation order.
type Map struct {
	Allocations []Allocation `json:"allocations"`
}

// ByName finds an allocation by its logical name.
func (m Map) ByName(name string) (Allocation, bool) {
	for _, alloc := range m.Allocations {
		if alloc.Name == name {
			return alloc, true
		}
	}
	return Allocation{}, false
}

// ByAddress finds an allocation by its device address.
func (m Map) ByAddress(addr Address) (Allocation, bool) {
	for _, alloc := range m.Allocations {
		if alloc.Address == addr {
			return alloc, true
		}
	}
	return Allocation{}, false
}

// Has reports whether the address was allocated in this run.
func (m Map) Has(addr Address) bool {
	_, ok := m.ByAddress(addr)
	return ok
}
