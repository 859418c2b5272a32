package rule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dexscope/internal/dex"
)

// ErrNoConstraints is the validation failure for a rule with nothing
// to match on.
var ErrNoConstraints = errors.New("rule has no constraints")

// FieldRule describes the fields to resolve on a class.
type FieldRule struct {
	Name      StringPred
	Type      StringPred
	Modifiers ModifierPred

	// Index disambiguates among candidates that satisfy every other
	// constraint (the rule-level order index).
	Index *IndexSelector

	// MatchCount, when set, requires the final match count to satisfy
	// it; otherwise any non-zero count succeeds.
	MatchCount *CountPred

	// Predicate is an arbitrary per-candidate filter. Rules carrying
	// one bypass the resolution cache.
	Predicate func(dex.Field) bool

	// SearchSuper retries the search one superclass at a time when the
	// declaring class yields no matches.
	SearchSuper bool
}

// Validate fails fast on rules the engine must not run.
func (r *FieldRule) Validate() error {
	if !r.Name.Active() && !r.Type.Active() && !r.Modifiers.Active() &&
		r.Index == nil && !r.MatchCount.Active() && r.Predicate == nil {
		return fmt.Errorf("field %w", ErrNoConstraints)
	}
	return nil
}

// Describe renders one line per active constraint, used in diagnostics
// and cache discriminants.
func (r *FieldRule) Describe() []string {
	var out []string
	if r.Name.Active() || r.Name.Index != nil {
		out = append(out, r.Name.describe("name"))
	}
	if r.Type.Active() || r.Type.Index != nil {
		out = append(out, r.Type.describe("type"))
	}
	if r.Modifiers.Active() || r.Modifiers.Index != nil {
		out = append(out, r.Modifiers.describe("modifiers"))
	}
	if r.Predicate != nil {
		out = append(out, "field matches <func>")
	}
	if r.Index != nil {
		out = append(out, fmt.Sprintf("order index %s", r.Index))
	}
	if r.MatchCount.Active() {
		out = append(out, r.MatchCount.describe("matchCount"))
	}
	if r.SearchSuper {
		out = append(out, "searching superclasses")
	}
	return out
}

// Cacheable reports whether the rule's result may be memoized. Rules
// with function predicates have no stable discriminant.
func (r *FieldRule) Cacheable() bool {
	return r.Name.Fn == nil && r.Type.Fn == nil && r.Modifiers.Fn == nil &&
		(r.MatchCount == nil || r.MatchCount.Fn == nil) &&
		r.Predicate == nil
}

// Discriminant is a stable string distinguishing this rule from others
// in cache keys. Only valid for cacheable rules.
func (r *FieldRule) Discriminant() string {
	return "field\x1f" + strings.Join(r.Describe(), "\x1f")
}

// MethodRule describes the methods to resolve on a class.
type MethodRule struct {
	Name       StringPred
	ReturnType StringPred
	ParamCount *CountPred

	// ParamTypes, when non-nil, requires an exact-length match with
	// Wildcard entries matching any type. Use an empty non-nil slice
	// to require a zero-argument method.
	ParamTypes []string

	Modifiers ModifierPred

	Index      *IndexSelector
	MatchCount *CountPred
	Predicate  func(dex.Method) bool

	SearchSuper bool
}

// Validate fails fast on rules the engine must not run, including
// all-wildcard parameter lists.
func (r *MethodRule) Validate() error {
	if err := ValidateParamTypes(r.ParamTypes); err != nil {
		return err
	}
	if !r.Name.Active() && !r.ReturnType.Active() && !r.ParamCount.Active() &&
		r.ParamTypes == nil && !r.Modifiers.Active() &&
		r.Index == nil && !r.MatchCount.Active() && r.Predicate == nil {
		return fmt.Errorf("method %w", ErrNoConstraints)
	}
	return nil
}

// Describe renders one line per active constraint.
func (r *MethodRule) Describe() []string {
	var out []string
	if r.Name.Active() || r.Name.Index != nil {
		out = append(out, r.Name.describe("name"))
	}
	if r.ReturnType.Active() || r.ReturnType.Index != nil {
		out = append(out, r.ReturnType.describe("returnType"))
	}
	if r.ParamCount.Active() {
		out = append(out, r.ParamCount.describe("paramCount"))
	}
	if r.ParamTypes != nil {
		out = append(out, describeParamTypes(r.ParamTypes))
	}
	if r.Modifiers.Active() || r.Modifiers.Index != nil {
		out = append(out, r.Modifiers.describe("modifiers"))
	}
	if r.Predicate != nil {
		out = append(out, "method matches <func>")
	}
	if r.Index != nil {
		out = append(out, fmt.Sprintf("order index %s", r.Index))
	}
	if r.MatchCount.Active() {
		out = append(out, r.MatchCount.describe("matchCount"))
	}
	if r.SearchSuper {
		out = append(out, "searching superclasses")
	}
	return out
}

// Cacheable reports whether the rule's result may be memoized.
func (r *MethodRule) Cacheable() bool {
	return r.Name.Fn == nil && r.ReturnType.Fn == nil &&
		(r.ParamCount == nil || r.ParamCount.Fn == nil) &&
		r.Modifiers.Fn == nil &&
		(r.MatchCount == nil || r.MatchCount.Fn == nil) &&
		r.Predicate == nil
}

// Discriminant is a stable cache-key component for cacheable rules.
func (r *MethodRule) Discriminant() string {
	return "method\x1f" + strings.Join(r.Describe(), "\x1f")
}

// ConstructorRule describes the constructors to resolve on a class. A
// constructor rule is a method rule without name or return-type
// constraints.
type ConstructorRule struct {
	ParamCount *CountPred
	ParamTypes []string
	Modifiers  ModifierPred

	Index      *IndexSelector
	MatchCount *CountPred
	Predicate  func(dex.Method) bool

	SearchSuper bool
}

// Validate fails fast on rules the engine must not run.
func (r *ConstructorRule) Validate() error {
	if err := ValidateParamTypes(r.ParamTypes); err != nil {
		return err
	}
	if !r.ParamCount.Active() && r.ParamTypes == nil && !r.Modifiers.Active() &&
		r.Index == nil && !r.MatchCount.Active() && r.Predicate == nil {
		return fmt.Errorf("constructor %w", ErrNoConstraints)
	}
	return nil
}

// Describe renders one line per active constraint.
func (r *ConstructorRule) Describe() []string {
	var out []string
	if r.ParamCount.Active() {
		out = append(out, r.ParamCount.describe("paramCount"))
	}
	if r.ParamTypes != nil {
		out = append(out, describeParamTypes(r.ParamTypes))
	}
	if r.Modifiers.Active() || r.Modifiers.Index != nil {
		out = append(out, r.Modifiers.describe("modifiers"))
	}
	if r.Predicate != nil {
		out = append(out, "constructor matches <func>")
	}
	if r.Index != nil {
		out = append(out, fmt.Sprintf("order index %s", r.Index))
	}
	if r.MatchCount.Active() {
		out = append(out, r.MatchCount.describe("matchCount"))
	}
	if r.SearchSuper {
		out = append(out, "searching superclasses")
	}
	return out
}

// Cacheable reports whether the rule's result may be memoized.
func (r *ConstructorRule) Cacheable() bool {
	return (r.ParamCount == nil || r.ParamCount.Fn == nil) &&
		r.Modifiers.Fn == nil &&
		(r.MatchCount == nil || r.MatchCount.Fn == nil) &&
		r.Predicate == nil
}

// Discriminant is a stable cache-key component for cacheable rules.
func (r *ConstructorRule) Discriminant() string {
	return "constructor\x1f" + strings.Join(r.Describe(), "\x1f")
}
