package rulefile

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schemaSource is the CUE schema every rule document must satisfy.
// Definitions are closed, so unknown fields are rejected with a
// position-carrying error instead of being silently dropped by the
// YAML decoder.
const schemaSource = `
#Index: {
	at?:       int
	from_end?: bool
}

#Str: {
	eq?:       string
	in?:       [...string]
	prefix?:   string
	contains?: string
	optional?: bool
	index?:    #Index
}

#Count: {
	eq?:  int
	in?:  [...int]
	min?: int
	max?: int
}

#Mods: {
	include?:  [...string]
	exclude?:  [...string]
	optional?: bool
	index?:    #Index
}

#Field: {
	name?:         #Str
	type?:         #Str
	modifiers?:    #Mods
	index?:        #Index
	match_count?:  #Count
	search_super?: bool
}

#Method: {
	name?:         #Str
	return_type?:  #Str
	param_count?:  #Count
	param_types?:  [...string]
	modifiers?:    #Mods
	index?:        #Index
	match_count?:  #Count
	search_super?: bool
}

#Constructor: {
	param_count?:  #Count
	param_types?:  [...string]
	modifiers?:    #Mods
	index?:        #Index
	match_count?:  #Count
	search_super?: bool
}

#Class: {
	package?:           #Str
	name?:              #Str
	simple_name?:       #Str
	single_name?:       #Str
	modifiers?:         #Mods
	superclass?:        #Str
	implements?:        [...string]
	interface_count?:   #Count
	enclosed_by?:       #Str
	anonymous?:         bool
	field_count?:       #Count
	method_count?:      #Count
	constructor_count?: #Count
	fields?:            [...#Field]
	methods?:           [...#Method]
	index?:             #Index
	match_count?:       #Count
}

#Query: {
	name!:        string
	class?:       #Class
	field?:       #Field
	method?:      #Method
	constructor?: #Constructor
}

#Document: {
	version!: 1
	queries!: [...#Query]
}
`

// ValidateSchema checks a generically decoded rule document against
// the CUE schema.
func ValidateSchema(doc any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("rulefile: internal schema error: %w", err)
	}

	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return fmt.Errorf("rulefile: cannot encode document: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Document")).Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("rulefile: schema violation: %s", cueerrors.Details(err, nil))
	}
	return nil
}
