package domain

import "unique"

// InternedString wraps a unique.Handle[string]. Package names and dependency
// names repeat across recipes, records and the ownership map; interning keeps
// one copy of each and makes equality a pointer comparison.
type InternedString struct {
	h unique.Handle[string]
}

// Intern returns the interned form of s.
func Intern(s string) InternedString {
	return InternedString{h: unique.Make(s)}
}

// String returns the underlying string. The zero value prints as "".
func (is InternedString) String() string {
	var zero unique.Handle[string]
	if is.h == zero {
		return ""
	}
	return is.h.Value()
}

// MarshalText implements encoding.TextMarshaler.
func (is InternedString) MarshalText() ([]byte, error) {
	return []byte(is.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (is *InternedString) UnmarshalText(text []byte) error {
	is.h = unique.Make(string(text))
	return nil
}
