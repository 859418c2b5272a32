package rule

import (
	"fmt"
	"strings"

	"github.com/roach88/dexscope/internal/dex"
)

// ClassRule describes the classes to resolve from a loader's class
// table.
type ClassRule struct {
	// Package filters on the package portion of the class name. It is
	// applied to raw class names before any class is materialized, so
	// a Prefix or Eq here keeps the search from decoding irrelevant
	// classes.
	Package StringPred

	// FullName matches the complete Java name (com.example.Outer$Inner).
	FullName StringPred

	// SimpleName matches the innermost name segment (Inner).
	SimpleName StringPred

	// SingleName matches the name without its package (Outer$Inner).
	SingleName StringPred

	Modifiers  ModifierPred
	Superclass StringPred

	// Implements lists interface names the class must declare. Order
	// is irrelevant; extra declared interfaces are allowed.
	Implements []string

	InterfaceCount *CountPred

	// EnclosedBy matches the full name of the enclosing class.
	EnclosedBy StringPred

	// Anonymous, when set, requires the class's anonymous flag to
	// equal the value.
	Anonymous *bool

	FieldCount       *CountPred
	MethodCount      *CountPred
	ConstructorCount *CountPred

	// Fields and Methods are nested member rules. The class qualifies
	// when each nested rule matches at least one member (or satisfies
	// its own MatchCount); matched members are counted, never returned.
	Fields  []*FieldRule
	Methods []*MethodRule

	Index      *IndexSelector
	MatchCount *CountPred
	Predicate  func(*dex.Class) bool
}

// Validate fails fast on rules the engine must not run, including
// malformed nested member rules.
func (r *ClassRule) Validate() error {
	for _, fr := range r.Fields {
		if err := fr.Validate(); err != nil {
			return fmt.Errorf("nested %w", err)
		}
	}
	for _, mr := range r.Methods {
		if err := mr.Validate(); err != nil {
			return fmt.Errorf("nested %w", err)
		}
	}
	if r.hasConstraint() {
		return nil
	}
	return fmt.Errorf("class %w", ErrNoConstraints)
}

func (r *ClassRule) hasConstraint() bool {
	return r.Package.Active() || r.FullName.Active() || r.SimpleName.Active() ||
		r.SingleName.Active() || r.Modifiers.Active() || r.Superclass.Active() ||
		len(r.Implements) > 0 || r.InterfaceCount.Active() ||
		r.EnclosedBy.Active() || r.Anonymous != nil ||
		r.FieldCount.Active() || r.MethodCount.Active() || r.ConstructorCount.Active() ||
		len(r.Fields) > 0 || len(r.Methods) > 0 ||
		r.Index != nil || r.MatchCount.Active() || r.Predicate != nil
}

// Describe renders one line per active constraint.
func (r *ClassRule) Describe() []string {
	var out []string
	if r.Package.Active() {
		out = append(out, r.Package.describe("package"))
	}
	if r.FullName.Active() || r.FullName.Index != nil {
		out = append(out, r.FullName.describe("name"))
	}
	if r.SimpleName.Active() || r.SimpleName.Index != nil {
		out = append(out, r.SimpleName.describe("simpleName"))
	}
	if r.SingleName.Active() || r.SingleName.Index != nil {
		out = append(out, r.SingleName.describe("singleName"))
	}
	if r.Modifiers.Active() || r.Modifiers.Index != nil {
		out = append(out, r.Modifiers.describe("modifiers"))
	}
	if r.Superclass.Active() {
		out = append(out, r.Superclass.describe("superclass"))
	}
	if len(r.Implements) > 0 {
		out = append(out, fmt.Sprintf("implements [%s]", strings.Join(r.Implements, ", ")))
	}
	if r.InterfaceCount.Active() {
		out = append(out, r.InterfaceCount.describe("interfaceCount"))
	}
	if r.EnclosedBy.Active() {
		out = append(out, r.EnclosedBy.describe("enclosedBy"))
	}
	if r.Anonymous != nil {
		out = append(out, fmt.Sprintf("anonymous = %t", *r.Anonymous))
	}
	if r.FieldCount.Active() {
		out = append(out, r.FieldCount.describe("fieldCount"))
	}
	if r.MethodCount.Active() {
		out = append(out, r.MethodCount.describe("methodCount"))
	}
	if r.ConstructorCount.Active() {
		out = append(out, r.ConstructorCount.describe("constructorCount"))
	}
	for _, fr := range r.Fields {
		out = append(out, "declares field { "+strings.Join(fr.Describe(), "; ")+" }")
	}
	for _, mr := range r.Methods {
		out = append(out, "declares method { "+strings.Join(mr.Describe(), "; ")+" }")
	}
	if r.Predicate != nil {
		out = append(out, "class matches <func>")
	}
	if r.Index != nil {
		out = append(out, fmt.Sprintf("order index %s", r.Index))
	}
	if r.MatchCount.Active() {
		out = append(out, r.MatchCount.describe("matchCount"))
	}
	return out
}

// Cacheable reports whether the rule's result may be memoized.
func (r *ClassRule) Cacheable() bool {
	if r.Package.Fn != nil || r.FullName.Fn != nil || r.SimpleName.Fn != nil ||
		r.SingleName.Fn != nil || r.Modifiers.Fn != nil || r.Superclass.Fn != nil ||
		r.EnclosedBy.Fn != nil || r.Predicate != nil {
		return false
	}
	if r.InterfaceCount != nil && r.InterfaceCount.Fn != nil {
		return false
	}
	for _, p := range []*CountPred{r.FieldCount, r.MethodCount, r.ConstructorCount, r.MatchCount} {
		if p != nil && p.Fn != nil {
			return false
		}
	}
	for _, fr := range r.Fields {
		if !fr.Cacheable() {
			return false
		}
	}
	for _, mr := range r.Methods {
		if !mr.Cacheable() {
			return false
		}
	}
	return true
}

// Discriminant is a stable cache-key component for cacheable rules.
func (r *ClassRule) Discriminant() string {
	return "class\x1f" + strings.Join(r.Describe(), "\x1f")
}
