package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes resolution failures.
type Code string

const (
	// CodeMissingClass indicates no class satisfied a class rule, or a
	// named class was not visible to the loader.
	CodeMissingClass Code = "MISSING_CLASS"

	// CodeMissingField indicates no field satisfied a field rule.
	CodeMissingField Code = "MISSING_FIELD"

	// CodeMissingMethod indicates no method or constructor satisfied
	// its rule.
	CodeMissingMethod Code = "MISSING_METHOD"

	// CodeMalformedRule indicates the rule itself was unusable: no
	// constraint set, an all-wildcard parameter list, or a malformed
	// nested rule.
	CodeMalformedRule Code = "MALFORMED_RULE"

	// CodeNoDexBacking indicates the loader chain had no dex-backed
	// loader to enumerate.
	CodeNoDexBacking Code = "NO_DEX_BACKING"
)

// errName is the rendered error-type name per code. The diagnostic
// trace indents continuation lines to this name's width so constraint
// lines align under the message.
var errName = map[Code]string{
	CodeMissingClass:  "MissingClassError",
	CodeMissingField:  "MissingFieldError",
	CodeMissingMethod: "MissingMethodError",
	CodeMalformedRule: "MalformedRuleError",
	CodeNoDexBacking:  "IllegalLoaderStateError",
}

// Error is a resolution failure with a diagnostic trace: the scope the
// search ran against and one line per attempted constraint.
type Error struct {
	Code        Code
	Message     string
	Scope       string   // class or loader name the search targeted
	Constraints []string // rendered constraint templates, one per line
	Err         error    // underlying cause, if any
}

// Error renders the failure as a multi-line diagnostic. The first line
// carries the error-type name and message; each constraint follows on
// its own line, indented to the width of the type name.
func (e *Error) Error() string {
	name := errName[e.Code]
	if name == "" {
		name = string(e.Code)
	}
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Scope != "" {
		fmt.Fprintf(&sb, " in %s", e.Scope)
	}
	indent := strings.Repeat(" ", len(name)+2)
	for _, c := range e.Constraints {
		sb.WriteString("\n")
		sb.WriteString(indent)
		sb.WriteString(c)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, "\n%scause: %v", indent, e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsMissing reports whether err is any not-found resolution error.
func IsMissing(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		switch re.Code {
		case CodeMissingClass, CodeMissingField, CodeMissingMethod:
			return true
		}
	}
	return false
}

// IsMalformedRule reports whether err is a malformed-rule error.
func IsMalformedRule(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeMalformedRule
}

// IsNoDexBacking reports whether err is the illegal-state error for a
// loader chain without dex backing.
func IsNoDexBacking(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeNoDexBacking
}

// CodeOf extracts the resolution code from err, or "" when err is not
// a resolution error.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newMissingClass(scope string, constraints []string) *Error {
	return &Error{
		Code:        CodeMissingClass,
		Message:     "no class matched the rule",
		Scope:       scope,
		Constraints: constraints,
	}
}

func newClassNotFound(scope, name string) *Error {
	return &Error{
		Code:    CodeMissingClass,
		Message: fmt.Sprintf("class %s not found", name),
		Scope:   scope,
	}
}

func newMissingField(scope string, constraints []string) *Error {
	return &Error{
		Code:        CodeMissingField,
		Message:     "no field matched the rule",
		Scope:       scope,
		Constraints: constraints,
	}
}

func newMissingMethod(scope, kind string, constraints []string) *Error {
	return &Error{
		Code:        CodeMissingMethod,
		Message:     fmt.Sprintf("no %s matched the rule", kind),
		Scope:       scope,
		Constraints: constraints,
	}
}

func newMalformedRule(err error) *Error {
	return &Error{
		Code:    CodeMalformedRule,
		Message: err.Error(),
		Err:     err,
	}
}

func newNoDexBacking(loaderName string, err error) *Error {
	return &Error{
		Code:    CodeNoDexBacking,
		Message: "loader chain has no dex-backed loader",
		Scope:   loaderName,
		Err:     err,
	}
}
