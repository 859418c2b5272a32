package resolve

import (
	"github.com/roach88/dexscope/internal/cache"
	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/loader"
	"github.com/roach88/dexscope/internal/rule"
)

// FindFields resolves ru against c's declared fields, in declaration
// order. The loader, when non-nil, supplies superclasses for rules
// with SearchSuper; pass nil to restrict the walk to c's own file.
func (r *Resolver) FindFields(l loader.Loader, c *dex.Class, ru *rule.FieldRule) ([]dex.Field, error) {
	if err := ru.Validate(); err != nil {
		return nil, newMalformedRule(err)
	}

	cacheable := ru.Cacheable()
	var key string
	if cacheable {
		key = cache.FieldsKey(classID(c), ru.Discriminant())
		if v, ok := r.cache.Fields(key); ok {
			return v, nil
		}
	}

	matches := r.matchFields(c, ru)
	for cur := c; len(matches) == 0 && ru.SearchSuper; {
		sc, ok := r.superclass(l, cur)
		if !ok {
			break
		}
		cur = sc
		matches = r.matchFields(cur, ru)
	}

	if ru.MatchCount.Active() {
		if !ru.MatchCount.Match(len(matches)) {
			return nil, newMissingField(c.Name, ru.Describe())
		}
	} else if len(matches) == 0 {
		return nil, newMissingField(c.Name, ru.Describe())
	}

	if cacheable {
		return r.cache.PutFields(key, matches), nil
	}
	return matches, nil
}

// FindField resolves ru and returns the first match.
func (r *Resolver) FindField(l loader.Loader, c *dex.Class, ru *rule.FieldRule) (dex.Field, error) {
	matches, err := r.FindFields(l, c, ru)
	if err != nil {
		return dex.Field{}, err
	}
	if len(matches) == 0 {
		return dex.Field{}, newMissingField(c.Name, ru.Describe())
	}
	return matches[0], nil
}

// matchFields evaluates ru against a single class, without validation,
// caching, or superclass fallback. Used directly for nested
// member-count constraints.
func (r *Resolver) matchFields(c *dex.Class, ru *rule.FieldRule) []dex.Field {
	fields := c.Fields
	var cons []constraint
	if ru.Name.Active() || ru.Name.Index != nil {
		cons = append(cons, constraint{
			optional: ru.Name.Optional,
			sel:      ru.Name.Index,
			match:    func(i int) bool { return ru.Name.Match(fields[i].Name) },
		})
	}
	if ru.Type.Active() || ru.Type.Index != nil {
		cons = append(cons, constraint{
			optional: ru.Type.Optional,
			sel:      ru.Type.Index,
			match:    func(i int) bool { return ru.Type.Match(fields[i].Type) },
		})
	}
	if ru.Modifiers.Active() || ru.Modifiers.Index != nil {
		cons = append(cons, constraint{
			optional: ru.Modifiers.Optional,
			sel:      ru.Modifiers.Index,
			match:    func(i int) bool { return ru.Modifiers.Match(fields[i].AccessFlags) },
		})
	}
	if ru.Predicate != nil {
		cons = append(cons, constraint{
			match: func(i int) bool { return ru.Predicate(fields[i]) },
		})
	}

	idxs := matchPositions(len(fields), cons, ru.Index)
	if len(idxs) == 0 {
		return nil
	}
	out := make([]dex.Field, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, fields[i])
	}
	return out
}

// FindMethods resolves ru against c's declared methods (constructors
// and static initializers excluded), in declaration order.
func (r *Resolver) FindMethods(l loader.Loader, c *dex.Class, ru *rule.MethodRule) ([]dex.Method, error) {
	if err := ru.Validate(); err != nil {
		return nil, newMalformedRule(err)
	}

	cacheable := ru.Cacheable()
	var key string
	if cacheable {
		key = cache.MethodsKey(classID(c), ru.Discriminant())
		if v, ok := r.cache.Methods(key); ok {
			return v, nil
		}
	}

	matches := r.matchMethods(c, ru)
	for cur := c; len(matches) == 0 && ru.SearchSuper; {
		sc, ok := r.superclass(l, cur)
		if !ok {
			break
		}
		cur = sc
		matches = r.matchMethods(cur, ru)
	}

	if ru.MatchCount.Active() {
		if !ru.MatchCount.Match(len(matches)) {
			return nil, newMissingMethod(c.Name, "method", ru.Describe())
		}
	} else if len(matches) == 0 {
		return nil, newMissingMethod(c.Name, "method", ru.Describe())
	}

	if cacheable {
		return r.cache.PutMethods(key, matches), nil
	}
	return matches, nil
}

// FindMethod resolves ru and returns the first match.
func (r *Resolver) FindMethod(l loader.Loader, c *dex.Class, ru *rule.MethodRule) (dex.Method, error) {
	matches, err := r.FindMethods(l, c, ru)
	if err != nil {
		return dex.Method{}, err
	}
	if len(matches) == 0 {
		return dex.Method{}, newMissingMethod(c.Name, "method", ru.Describe())
	}
	return matches[0], nil
}

func (r *Resolver) matchMethods(c *dex.Class, ru *rule.MethodRule) []dex.Method {
	var methods []dex.Method
	for _, m := range c.Methods {
		if !m.IsConstructor() {
			methods = append(methods, m)
		}
	}
	cons := methodConstraints(methods, &ru.Name, &ru.ReturnType, ru.ParamCount, ru.ParamTypes, &ru.Modifiers, ru.Predicate)
	idxs := matchPositions(len(methods), cons, ru.Index)
	if len(idxs) == 0 {
		return nil
	}
	out := make([]dex.Method, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, methods[i])
	}
	return out
}

// FindConstructors resolves ru against c's declared constructors.
func (r *Resolver) FindConstructors(l loader.Loader, c *dex.Class, ru *rule.ConstructorRule) ([]dex.Method, error) {
	if err := ru.Validate(); err != nil {
		return nil, newMalformedRule(err)
	}

	cacheable := ru.Cacheable()
	var key string
	if cacheable {
		key = cache.MethodsKey(classID(c), ru.Discriminant())
		if v, ok := r.cache.Methods(key); ok {
			return v, nil
		}
	}

	matches := r.matchConstructors(c, ru)
	for cur := c; len(matches) == 0 && ru.SearchSuper; {
		sc, ok := r.superclass(l, cur)
		if !ok {
			break
		}
		cur = sc
		matches = r.matchConstructors(cur, ru)
	}

	if ru.MatchCount.Active() {
		if !ru.MatchCount.Match(len(matches)) {
			return nil, newMissingMethod(c.Name, "constructor", ru.Describe())
		}
	} else if len(matches) == 0 {
		return nil, newMissingMethod(c.Name, "constructor", ru.Describe())
	}

	if cacheable {
		return r.cache.PutMethods(key, matches), nil
	}
	return matches, nil
}

func (r *Resolver) matchConstructors(c *dex.Class, ru *rule.ConstructorRule) []dex.Method {
	var ctors []dex.Method
	for _, m := range c.Methods {
		if m.Name == "<init>" {
			ctors = append(ctors, m)
		}
	}
	cons := methodConstraints(ctors, nil, nil, ru.ParamCount, ru.ParamTypes, &ru.Modifiers, ru.Predicate)
	idxs := matchPositions(len(ctors), cons, ru.Index)
	if len(idxs) == 0 {
		return nil
	}
	out := make([]dex.Method, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, ctors[i])
	}
	return out
}

// methodConstraints binds the shared method/constructor predicates to
// a candidate list. name and returnType are nil for constructor rules.
func methodConstraints(
	methods []dex.Method,
	name, returnType *rule.StringPred,
	paramCount *rule.CountPred,
	paramTypes []string,
	modifiers *rule.ModifierPred,
	predicate func(dex.Method) bool,
) []constraint {
	var cons []constraint
	if name != nil && (name.Active() || name.Index != nil) {
		cons = append(cons, constraint{
			optional: name.Optional,
			sel:      name.Index,
			match:    func(i int) bool { return name.Match(methods[i].Name) },
		})
	}
	if returnType != nil && (returnType.Active() || returnType.Index != nil) {
		cons = append(cons, constraint{
			optional: returnType.Optional,
			sel:      returnType.Index,
			match:    func(i int) bool { return returnType.Match(methods[i].ReturnType) },
		})
	}
	if paramCount.Active() {
		cons = append(cons, constraint{
			match: func(i int) bool { return paramCount.Match(len(methods[i].Params)) },
		})
	}
	if paramTypes != nil {
		cons = append(cons, constraint{
			match: func(i int) bool { return rule.MatchParamTypes(paramTypes, methods[i].Params) },
		})
	}
	if modifiers != nil && (modifiers.Active() || modifiers.Index != nil) {
		cons = append(cons, constraint{
			optional: modifiers.Optional,
			sel:      modifiers.Index,
			match:    func(i int) bool { return modifiers.Match(methods[i].AccessFlags) },
		})
	}
	if predicate != nil {
		cons = append(cons, constraint{
			match: func(i int) bool { return predicate(methods[i]) },
		})
	}
	return cons
}
