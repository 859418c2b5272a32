package rule

import (
	"fmt"
	"sort"
	"strings"
)

// Wildcard is the parameter-type placeholder that matches any actual
// type during parameter-list comparison.
const Wildcard = "*"

// IndexSelector picks which occurrence to keep when several candidates
// satisfy a constraint. N counts from the first occurrence, or from the
// last when FromEnd is set. A negative N always counts from the end
// (-1 is the last occurrence), mirroring slice-style indexing.
type IndexSelector struct {
	N       int
	FromEnd bool
}

// First selects the first occurrence.
func First() *IndexSelector { return &IndexSelector{N: 0} }

// Last selects the last occurrence.
func Last() *IndexSelector { return &IndexSelector{N: 0, FromEnd: true} }

// At selects occurrence n; negative n counts from the end.
func At(n int) *IndexSelector { return &IndexSelector{N: n} }

// Resolve maps the selector to a concrete occurrence index given the
// index of the last matching occurrence (count-1). Returns false when
// the selection falls outside [0, last].
func (s IndexSelector) Resolve(last int) (int, bool) {
	n := s.N
	switch {
	case s.FromEnd:
		n = last - n
	case n < 0:
		n = last + 1 + n
	}
	if n < 0 || n > last {
		return 0, false
	}
	return n, true
}

func (s IndexSelector) String() string {
	if s.FromEnd {
		return fmt.Sprintf("last-%d", s.N)
	}
	return fmt.Sprintf("%d", s.N)
}

// StringPred constrains one string attribute. Every set condition must
// hold; Fn is an arbitrary caller predicate and makes the enclosing
// rule uncacheable.
type StringPred struct {
	Eq       *string
	In       []string
	Prefix   *string
	Contains *string
	Fn       func(string) bool

	// Optional marks the predicate as non-vetoing: a candidate that
	// fails it is still eligible, the predicate only participates in
	// positional disambiguation.
	Optional bool

	// Index disambiguates between multiple candidates satisfying this
	// predicate alone.
	Index *IndexSelector
}

// Active reports whether any condition is set.
func (p *StringPred) Active() bool {
	return p != nil && (p.Eq != nil || len(p.In) > 0 || p.Prefix != nil || p.Contains != nil || p.Fn != nil)
}

// Match evaluates every set condition against s.
func (p *StringPred) Match(s string) bool {
	if p.Eq != nil && s != *p.Eq {
		return false
	}
	if len(p.In) > 0 {
		found := false
		for _, v := range p.In {
			if s == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Prefix != nil && !strings.HasPrefix(s, *p.Prefix) {
		return false
	}
	if p.Contains != nil && !strings.Contains(s, *p.Contains) {
		return false
	}
	if p.Fn != nil && !p.Fn(s) {
		return false
	}
	return true
}

func (p *StringPred) describe(attr string) string {
	var parts []string
	if p.Eq != nil {
		parts = append(parts, fmt.Sprintf("%s = %q", attr, *p.Eq))
	}
	if len(p.In) > 0 {
		parts = append(parts, fmt.Sprintf("%s in [%s]", attr, strings.Join(p.In, ", ")))
	}
	if p.Prefix != nil {
		parts = append(parts, fmt.Sprintf("%s startsWith %q", attr, *p.Prefix))
	}
	if p.Contains != nil {
		parts = append(parts, fmt.Sprintf("%s contains %q", attr, *p.Contains))
	}
	if p.Fn != nil {
		parts = append(parts, fmt.Sprintf("%s matches <func>", attr))
	}
	s := strings.Join(parts, " and ")
	if p.Index != nil {
		s += fmt.Sprintf(" [index %s]", p.Index)
	}
	if p.Optional {
		s += " (optional)"
	}
	return s
}

// CountPred constrains an integer attribute (a parameter count, a
// member count) by exact value, set, range, or custom function.
type CountPred struct {
	Eq  *int
	In  []int
	Min *int
	Max *int
	Fn  func(int) bool
}

// Exactly builds a CountPred matching a single value.
func Exactly(n int) *CountPred { return &CountPred{Eq: &n} }

// Between builds a CountPred matching the inclusive range [lo, hi].
func Between(lo, hi int) *CountPred { return &CountPred{Min: &lo, Max: &hi} }

// Active reports whether any condition is set.
func (p *CountPred) Active() bool {
	return p != nil && (p.Eq != nil || len(p.In) > 0 || p.Min != nil || p.Max != nil || p.Fn != nil)
}

// Match evaluates every set condition against n.
func (p *CountPred) Match(n int) bool {
	if p.Eq != nil && n != *p.Eq {
		return false
	}
	if len(p.In) > 0 {
		found := false
		for _, v := range p.In {
			if n == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Min != nil && n < *p.Min {
		return false
	}
	if p.Max != nil && n > *p.Max {
		return false
	}
	if p.Fn != nil && !p.Fn(n) {
		return false
	}
	return true
}

func (p *CountPred) describe(attr string) string {
	var parts []string
	if p.Eq != nil {
		parts = append(parts, fmt.Sprintf("%s = %d", attr, *p.Eq))
	}
	if len(p.In) > 0 {
		strs := make([]string, len(p.In))
		for i, v := range p.In {
			strs[i] = fmt.Sprintf("%d", v)
		}
		parts = append(parts, fmt.Sprintf("%s in [%s]", attr, strings.Join(strs, ", ")))
	}
	if p.Min != nil {
		parts = append(parts, fmt.Sprintf("%s >= %d", attr, *p.Min))
	}
	if p.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %d", attr, *p.Max))
	}
	if p.Fn != nil {
		parts = append(parts, fmt.Sprintf("%s matches <func>", attr))
	}
	return strings.Join(parts, " and ")
}

// ModifierPred constrains access flags: every bit in Include must be
// present, every bit in Exclude absent.
type ModifierPred struct {
	Include uint32
	Exclude uint32
	Fn      func(uint32) bool

	Optional bool
	Index    *IndexSelector
}

// Active reports whether any condition is set.
func (p *ModifierPred) Active() bool {
	return p != nil && (p.Include != 0 || p.Exclude != 0 || p.Fn != nil)
}

// Match evaluates the mask conditions against flags.
func (p *ModifierPred) Match(flags uint32) bool {
	if flags&p.Include != p.Include {
		return false
	}
	if flags&p.Exclude != 0 {
		return false
	}
	if p.Fn != nil && !p.Fn(flags) {
		return false
	}
	return true
}

func (p *ModifierPred) describe(attr string) string {
	var parts []string
	if p.Include != 0 {
		parts = append(parts, fmt.Sprintf("%s has %s", attr, ModifierNames(p.Include)))
	}
	if p.Exclude != 0 {
		parts = append(parts, fmt.Sprintf("%s lacks %s", attr, ModifierNames(p.Exclude)))
	}
	if p.Fn != nil {
		parts = append(parts, fmt.Sprintf("%s matches <func>", attr))
	}
	s := strings.Join(parts, " and ")
	if p.Index != nil {
		s += fmt.Sprintf(" [index %s]", p.Index)
	}
	if p.Optional {
		s += " (optional)"
	}
	return s
}

var modifierNames = map[uint32]string{
	0x1:     "public",
	0x2:     "private",
	0x4:     "protected",
	0x8:     "static",
	0x10:    "final",
	0x20:    "synchronized",
	0x40:    "volatile",
	0x80:    "transient",
	0x100:   "native",
	0x200:   "interface",
	0x400:   "abstract",
	0x800:   "strict",
	0x1000:  "synthetic",
	0x2000:  "annotation",
	0x4000:  "enum",
	0x10000: "constructor",
}

// ModifierMask converts modifier keywords to an access-flag mask.
func ModifierMask(names []string) (uint32, error) {
	var mask uint32
	for _, name := range names {
		found := false
		for bit, n := range modifierNames {
			if n == name {
				mask |= bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return mask, nil
}

// ModifierNames renders an access-flag mask as pipe-joined keywords,
// lowest bit first.
func ModifierNames(mask uint32) string {
	var bits []uint32
	for bit := range modifierNames {
		if mask&bit != 0 {
			bits = append(bits, bit)
		}
	}
	if len(bits) == 0 {
		return "0"
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = modifierNames[bit]
	}
	return strings.Join(names, "|")
}

// MatchParamTypes compares a rule's parameter-type list against actual
// parameter types. The lists must have equal length; positions holding
// Wildcard match any type.
func MatchParamTypes(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] == Wildcard {
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// ValidateParamTypes rejects parameter-type lists made entirely of
// wildcards; at least one position must name a concrete type. A
// wildcard-free list and the empty list (zero-arg match) are valid.
func ValidateParamTypes(want []string) error {
	if len(want) == 0 {
		return nil
	}
	for _, t := range want {
		if t != Wildcard {
			return nil
		}
	}
	return fmt.Errorf("parameter types are all wildcards; at most %d of %d may be %q", len(want)-1, len(want), Wildcard)
}

func describeParamTypes(want []string) string {
	return fmt.Sprintf("paramTypes = (%s)", strings.Join(want, ", "))
}
