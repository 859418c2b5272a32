// Package rulefile loads declarative rule documents from YAML,
// validates them against a CUE schema, and converts them into rule
// values for the resolution engine.
package rulefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a parsed rule file.
type Document struct {
	// Version is the document format version. Only version 1 exists.
	Version int `yaml:"version"`

	// Queries are evaluated independently, in order.
	Queries []Query `yaml:"queries"`
}

// Query names one resolution to run: a class rule selecting the target
// class(es), optionally followed by member rules resolved on each
// matched class.
type Query struct {
	Name string `yaml:"name"`

	Class       *ClassSpec       `yaml:"class,omitempty"`
	Field       *FieldSpec       `yaml:"field,omitempty"`
	Method      *MethodSpec      `yaml:"method,omitempty"`
	Constructor *ConstructorSpec `yaml:"constructor,omitempty"`
}

// IndexSpec selects one occurrence among conflicting matches.
type IndexSpec struct {
	At      int  `yaml:"at"`
	FromEnd bool `yaml:"from_end,omitempty"`
}

// StringSpec is the YAML form of a string predicate.
type StringSpec struct {
	Eq       *string    `yaml:"eq,omitempty"`
	In       []string   `yaml:"in,omitempty"`
	Prefix   *string    `yaml:"prefix,omitempty"`
	Contains *string    `yaml:"contains,omitempty"`
	Optional bool       `yaml:"optional,omitempty"`
	Index    *IndexSpec `yaml:"index,omitempty"`
}

// CountSpec is the YAML form of a count predicate.
type CountSpec struct {
	Eq  *int  `yaml:"eq,omitempty"`
	In  []int `yaml:"in,omitempty"`
	Min *int  `yaml:"min,omitempty"`
	Max *int  `yaml:"max,omitempty"`
}

// ModifierSpec constrains access flags by keyword.
type ModifierSpec struct {
	Include  []string   `yaml:"include,omitempty"`
	Exclude  []string   `yaml:"exclude,omitempty"`
	Optional bool       `yaml:"optional,omitempty"`
	Index    *IndexSpec `yaml:"index,omitempty"`
}

// FieldSpec is the YAML form of a field rule.
type FieldSpec struct {
	Name        *StringSpec   `yaml:"name,omitempty"`
	Type        *StringSpec   `yaml:"type,omitempty"`
	Modifiers   *ModifierSpec `yaml:"modifiers,omitempty"`
	Index       *IndexSpec    `yaml:"index,omitempty"`
	MatchCount  *CountSpec    `yaml:"match_count,omitempty"`
	SearchSuper bool          `yaml:"search_super,omitempty"`
}

// MethodSpec is the YAML form of a method rule.
type MethodSpec struct {
	Name        *StringSpec   `yaml:"name,omitempty"`
	ReturnType  *StringSpec   `yaml:"return_type,omitempty"`
	ParamCount  *CountSpec    `yaml:"param_count,omitempty"`
	ParamTypes  []string      `yaml:"param_types,omitempty"`
	Modifiers   *ModifierSpec `yaml:"modifiers,omitempty"`
	Index       *IndexSpec    `yaml:"index,omitempty"`
	MatchCount  *CountSpec    `yaml:"match_count,omitempty"`
	SearchSuper bool          `yaml:"search_super,omitempty"`
}

// ConstructorSpec is the YAML form of a constructor rule.
type ConstructorSpec struct {
	ParamCount  *CountSpec    `yaml:"param_count,omitempty"`
	ParamTypes  []string      `yaml:"param_types,omitempty"`
	Modifiers   *ModifierSpec `yaml:"modifiers,omitempty"`
	Index       *IndexSpec    `yaml:"index,omitempty"`
	MatchCount  *CountSpec    `yaml:"match_count,omitempty"`
	SearchSuper bool          `yaml:"search_super,omitempty"`
}

// ClassSpec is the YAML form of a class rule.
type ClassSpec struct {
	Package          *StringSpec   `yaml:"package,omitempty"`
	Name             *StringSpec   `yaml:"name,omitempty"`
	SimpleName       *StringSpec   `yaml:"simple_name,omitempty"`
	SingleName       *StringSpec   `yaml:"single_name,omitempty"`
	Modifiers        *ModifierSpec `yaml:"modifiers,omitempty"`
	Superclass       *StringSpec   `yaml:"superclass,omitempty"`
	Implements       []string      `yaml:"implements,omitempty"`
	InterfaceCount   *CountSpec    `yaml:"interface_count,omitempty"`
	EnclosedBy       *StringSpec   `yaml:"enclosed_by,omitempty"`
	Anonymous        *bool         `yaml:"anonymous,omitempty"`
	FieldCount       *CountSpec    `yaml:"field_count,omitempty"`
	MethodCount      *CountSpec    `yaml:"method_count,omitempty"`
	ConstructorCount *CountSpec    `yaml:"constructor_count,omitempty"`
	Fields           []FieldSpec   `yaml:"fields,omitempty"`
	Methods          []MethodSpec  `yaml:"methods,omitempty"`
	Index            *IndexSpec    `yaml:"index,omitempty"`
	MatchCount       *CountSpec    `yaml:"match_count,omitempty"`
}

// Load reads, schema-validates, and decodes a rule file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulefile: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes rule-file bytes.
func Parse(raw []byte) (*Document, error) {
	// Decode generically first so schema validation sees exactly what
	// the author wrote, including unknown fields.
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("rulefile: invalid YAML: %w", err)
	}
	if err := ValidateSchema(generic); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("rulefile: %w", err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("rulefile: unsupported version %d", doc.Version)
	}
	for i, q := range doc.Queries {
		if q.Name == "" {
			return nil, fmt.Errorf("rulefile: query %d has no name", i)
		}
	}
	return &doc, nil
}
