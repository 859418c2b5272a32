package rulefile

import (
	"fmt"

	"github.com/roach88/dexscope/internal/rule"
)

func (s *IndexSpec) selector() *rule.IndexSelector {
	if s == nil {
		return nil
	}
	return &rule.IndexSelector{N: s.At, FromEnd: s.FromEnd}
}

func (s *StringSpec) pred() rule.StringPred {
	if s == nil {
		return rule.StringPred{}
	}
	return rule.StringPred{
		Eq:       s.Eq,
		In:       s.In,
		Prefix:   s.Prefix,
		Contains: s.Contains,
		Optional: s.Optional,
		Index:    s.Index.selector(),
	}
}

func (s *CountSpec) pred() *rule.CountPred {
	if s == nil {
		return nil
	}
	return &rule.CountPred{Eq: s.Eq, In: s.In, Min: s.Min, Max: s.Max}
}

func (s *ModifierSpec) pred() (rule.ModifierPred, error) {
	if s == nil {
		return rule.ModifierPred{}, nil
	}
	include, err := rule.ModifierMask(s.Include)
	if err != nil {
		return rule.ModifierPred{}, err
	}
	exclude, err := rule.ModifierMask(s.Exclude)
	if err != nil {
		return rule.ModifierPred{}, err
	}
	return rule.ModifierPred{
		Include:  include,
		Exclude:  exclude,
		Optional: s.Optional,
		Index:    s.Index.selector(),
	}, nil
}

// FieldRule converts the spec to an engine rule.
func (s *FieldSpec) FieldRule() (*rule.FieldRule, error) {
	mods, err := s.Modifiers.pred()
	if err != nil {
		return nil, fmt.Errorf("field rule: %w", err)
	}
	return &rule.FieldRule{
		Name:        s.Name.pred(),
		Type:        s.Type.pred(),
		Modifiers:   mods,
		Index:       s.Index.selector(),
		MatchCount:  s.MatchCount.pred(),
		SearchSuper: s.SearchSuper,
	}, nil
}

// MethodRule converts the spec to an engine rule.
func (s *MethodSpec) MethodRule() (*rule.MethodRule, error) {
	mods, err := s.Modifiers.pred()
	if err != nil {
		return nil, fmt.Errorf("method rule: %w", err)
	}
	return &rule.MethodRule{
		Name:        s.Name.pred(),
		ReturnType:  s.ReturnType.pred(),
		ParamCount:  s.ParamCount.pred(),
		ParamTypes:  s.ParamTypes,
		Modifiers:   mods,
		Index:       s.Index.selector(),
		MatchCount:  s.MatchCount.pred(),
		SearchSuper: s.SearchSuper,
	}, nil
}

// ConstructorRule converts the spec to an engine rule.
func (s *ConstructorSpec) ConstructorRule() (*rule.ConstructorRule, error) {
	mods, err := s.Modifiers.pred()
	if err != nil {
		return nil, fmt.Errorf("constructor rule: %w", err)
	}
	return &rule.ConstructorRule{
		ParamCount:  s.ParamCount.pred(),
		ParamTypes:  s.ParamTypes,
		Modifiers:   mods,
		Index:       s.Index.selector(),
		MatchCount:  s.MatchCount.pred(),
		SearchSuper: s.SearchSuper,
	}, nil
}

// ClassRule converts the spec to an engine rule.
func (s *ClassSpec) ClassRule() (*rule.ClassRule, error) {
	mods, err := s.Modifiers.pred()
	if err != nil {
		return nil, fmt.Errorf("class rule: %w", err)
	}
	r := &rule.ClassRule{
		Package:          s.Package.pred(),
		FullName:         s.Name.pred(),
		SimpleName:       s.SimpleName.pred(),
		SingleName:       s.SingleName.pred(),
		Modifiers:        mods,
		Superclass:       s.Superclass.pred(),
		Implements:       s.Implements,
		InterfaceCount:   s.InterfaceCount.pred(),
		EnclosedBy:       s.EnclosedBy.pred(),
		Anonymous:        s.Anonymous,
		FieldCount:       s.FieldCount.pred(),
		MethodCount:      s.MethodCount.pred(),
		ConstructorCount: s.ConstructorCount.pred(),
		Index:            s.Index.selector(),
		MatchCount:       s.MatchCount.pred(),
	}
	for i := range s.Fields {
		fr, err := s.Fields[i].FieldRule()
		if err != nil {
			return nil, fmt.Errorf("class rule: nested %w", err)
		}
		r.Fields = append(r.Fields, fr)
	}
	for i := range s.Methods {
		mr, err := s.Methods[i].MethodRule()
		if err != nil {
			return nil, fmt.Errorf("class rule: nested %w", err)
		}
		r.Methods = append(r.Methods, mr)
	}
	return r, nil
}
