// internal/register/table.go
package register

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tamzrod/harp-replicator/internal/harp"
)

var (
	// ErrAddressCollision is returned by Extend when an address is already taken.
	ErrAddressCollision = errors.New("register: address collision")

	// ErrNotOverridable is returned by Override for an address the base never declared.
	ErrNotOverridable = errors.New("register: override of undeclared address")
)

// Table maps address -> Descriptor for one device type.
// Immutable: Extend and Override return copies.
type Table struct {
	name   string
	byAddr map[uint8]Descriptor
}

// NewTable builds a table from scratch.
func NewTable(name string, descs ...Descriptor) (Table, error) {
	t := Table{name: name, byAddr: make(map[uint8]Descriptor, len(descs))}
	return t.Extend(descs...)
}

func (t Table) Name() string { return t.name }

func (t Table) Len() int { return len(t.byAddr) }

// Named returns a copy of t carrying a different device name.
func (t Table) Named(name string) Table {
	return Table{name: name, byAddr: t.byAddr}
}

// Extend copies t and adds descs. Any address already present, in t or
// earlier in descs, fails the whole call.
func (t Table) Extend(descs ...Descriptor) (Table, error) {
	out := t.clone()
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return Table{}, err
		}
		if prev, exists := out.byAddr[d.Address]; exists {
			return Table{}, fmt.Errorf(
				"%w: %s: address %d used by %s and %s",
				ErrAddressCollision, t.name, d.Address, prev.Name, d.Name,
			)
		}
		if prev, ok := out.lookupName(d.Name); ok {
			return Table{}, fmt.Errorf(
				"%w: %s: name %s already used at address %d",
				ErrAddressCollision, t.name, d.Name, prev.Address,
			)
		}
		out.byAddr[d.Address] = d
	}
	return out, nil
}

// Override copies t and replaces existing entries. An address that t does
// not already declare is rejected: overrides must be intentional.
func (t Table) Override(descs ...Descriptor) (Table, error) {
	out := t.clone()
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return Table{}, err
		}
		if _, exists := out.byAddr[d.Address]; !exists {
			return Table{}, fmt.Errorf("%w: %s: address %d (%s)", ErrNotOverridable, t.name, d.Address, d.Name)
		}
		out.byAddr[d.Address] = d
	}
	return out, nil
}

// MustExtend is Extend for package-level tables; schema drift panics at init.
func (t Table) MustExtend(descs ...Descriptor) Table {
	out, err := t.Extend(descs...)
	if err != nil {
		panic(err)
	}
	return out
}

func (t Table) MustOverride(descs ...Descriptor) Table {
	out, err := t.Override(descs...)
	if err != nil {
		panic(err)
	}
	return out
}

// Lookup returns the descriptor at addr or harp.ErrUnknownRegister.
func (t Table) Lookup(addr uint8) (Descriptor, error) {
	d, ok := t.byAddr[addr]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s has no register at address %d", harp.ErrUnknownRegister, t.name, addr)
	}
	return d, nil
}

// LookupName resolves a register by name (case-insensitive).
func (t Table) LookupName(name string) (Descriptor, error) {
	d, ok := t.lookupName(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s has no register named %q", harp.ErrUnknownRegister, t.name, name)
	}
	return d, nil
}

// Contains reports whether d is exactly the descriptor t holds at d.Address.
func (t Table) Contains(d Descriptor) bool {
	got, ok := t.byAddr[d.Address]
	return ok && got == d
}

// Addresses returns all addresses in ascending order.
func (t Table) Addresses() []uint8 {
	out := make([]uint8, 0, len(t.byAddr))
	for a := range t.byAddr {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Descriptors returns all descriptors ordered by address.
func (t Table) Descriptors() []Descriptor {
	addrs := t.Addresses()
	out := make([]Descriptor, len(addrs))
	for i, a := range addrs {
		out[i] = t.byAddr[a]
	}
	return out
}

func (t Table) lookupName(name string) (Descriptor, bool) {
	for _, d := range t.byAddr {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Descriptor{}, false
}

func (t Table) clone() Table {
	out := Table{name: t.name, byAddr: make(map[uint8]Descriptor, len(t.byAddr))}
	for a, d := range t.byAddr {
		out.byAddr[a] = d
	}
	return out
}
