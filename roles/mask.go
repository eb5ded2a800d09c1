package roles

import "strings"

// Mask is a set of roles. The zero value is the empty set.
type Mask uint64

// With returns the union of m and the given roles.
func (m Mask) With(rs ...Role) Mask {
	for _, r := range rs {
		m |= Mask(r)
	}
	return m
}

// Without returns m with the given roles removed.
func (m Mask) Without(rs ...Role) Mask {
	for _, r := range rs {
		m &^= Mask(r)
	}
	return m
}

// Has reports whether every bit of r is present in m.
func (m Mask) Has(r Role) bool {
	return r != 0 && m&Mask(r) == Mask(r)
}

// HasAny reports whether at least one of the given roles is present.
func (m Mask) HasAny(rs ...Role) bool {
	for _, r := range rs {
		if m.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of the given roles is present.
func (m Mask) HasAll(rs ...Role) bool {
	for _, r := range rs {
		if !m.Has(r) {
			return false
		}
	}
	return len(rs) > 0
}

// Roles decomposes the mask into defined roles in canonical order.
// Undefined bits are ignored.
func (m Mask) Roles() []Role {
	var out []Role
	for _, entry := range table {
		if m.Has(entry.role) {
			out = append(out, entry.role)
		}
	}
	return out
}

// Names returns the canonical names of the roles present in the mask.
func (m Mask) Names() []string {
	var out []string
	for _, entry := range table {
		if m.Has(entry.role) {
			out = append(out, entry.name)
		}
	}
	return out
}

func (m Mask) String() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Int64 converts the mask for storage in a signed BIGINT column.
func (m Mask) Int64() int64 {
	return int64(m)
}

// FromInt64 restores a mask read from storage.
func FromInt64(v int64) Mask {
	return Mask(uint64(v))
}
