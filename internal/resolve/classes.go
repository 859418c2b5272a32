package resolve

import (
	"strings"

	"github.com/roach88/dexscope/internal/cache"
	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/loader"
	"github.com/roach88/dexscope/internal/rule"
)

// ClassNames enumerates every class name reachable through l's backing
// dex chain. The list is cached per loader identity.
func (r *Resolver) ClassNames(l loader.Loader) ([]string, error) {
	key := cache.ClassNamesKey(l.ID())
	if v, ok := r.cache.ClassNames(key); ok {
		return v, nil
	}
	names, err := loader.ClassNames(l)
	if err != nil {
		return nil, newNoDexBacking(l.Name(), err)
	}
	return r.cache.PutClassNames(key, names), nil
}

// FindClasses resolves ru against every class visible to l and returns
// the matches in class-table order.
func (r *Resolver) FindClasses(l loader.Loader, ru *rule.ClassRule) ([]*dex.Class, error) {
	if err := ru.Validate(); err != nil {
		return nil, newMalformedRule(err)
	}

	cacheable := ru.Cacheable()
	var key string
	if cacheable {
		key = cache.ClassesKey(l.ID(), ru.Discriminant())
		if v, ok := r.cache.Classes(key); ok {
			return v, nil
		}
	}

	names, err := r.ClassNames(l)
	if err != nil {
		return nil, err
	}

	// The package filter runs on raw names so irrelevant classes are
	// never materialized.
	classes := make([]*dex.Class, 0, len(names))
	for _, name := range names {
		if ru.Package.Active() && !ru.Package.Match(packageOf(name)) {
			continue
		}
		c, ok, loadErr := l.LoadClass(name)
		if loadErr != nil {
			// Best effort: a class that fails to decode contributes no
			// candidates, the search continues.
			r.log.Warn("class introspection failed", "class", name, "error", loadErr)
			continue
		}
		if ok {
			classes = append(classes, c)
		}
	}

	matches := r.matchClasses(classes, ru)

	if ru.MatchCount.Active() {
		if !ru.MatchCount.Match(len(matches)) {
			return nil, newMissingClass(l.Name(), ru.Describe())
		}
	} else if len(matches) == 0 {
		return nil, newMissingClass(l.Name(), ru.Describe())
	}

	if cacheable {
		return r.cache.PutClasses(key, matches), nil
	}
	return matches, nil
}

// FindClass resolves ru and returns the first matching class.
func (r *Resolver) FindClass(l loader.Loader, ru *rule.ClassRule) (*dex.Class, error) {
	matches, err := r.FindClasses(l, ru)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, newMissingClass(l.Name(), ru.Describe())
	}
	return matches[0], nil
}

func (r *Resolver) matchClasses(classes []*dex.Class, ru *rule.ClassRule) []*dex.Class {
	var cons []constraint
	addString := func(p *rule.StringPred, get func(*dex.Class) string) {
		if p.Active() || p.Index != nil {
			cons = append(cons, constraint{
				optional: p.Optional,
				sel:      p.Index,
				match:    func(i int) bool { return p.Match(get(classes[i])) },
			})
		}
	}

	addString(&ru.Package, func(c *dex.Class) string { return c.Package() })
	addString(&ru.FullName, func(c *dex.Class) string { return c.Name })
	addString(&ru.SimpleName, func(c *dex.Class) string { return c.SimpleName() })
	addString(&ru.SingleName, func(c *dex.Class) string { return c.SingleName() })
	addString(&ru.Superclass, func(c *dex.Class) string { return c.SuperName })
	addString(&ru.EnclosedBy, func(c *dex.Class) string { return c.EnclosingName() })

	if ru.Modifiers.Active() || ru.Modifiers.Index != nil {
		cons = append(cons, constraint{
			optional: ru.Modifiers.Optional,
			sel:      ru.Modifiers.Index,
			match:    func(i int) bool { return ru.Modifiers.Match(classes[i].AccessFlags) },
		})
	}
	if len(ru.Implements) > 0 {
		cons = append(cons, constraint{
			match: func(i int) bool { return implementsAll(classes[i], ru.Implements) },
		})
	}
	if ru.InterfaceCount.Active() {
		cons = append(cons, constraint{
			match: func(i int) bool { return ru.InterfaceCount.Match(len(classes[i].Interfaces)) },
		})
	}
	if ru.Anonymous != nil {
		cons = append(cons, constraint{
			match: func(i int) bool { return classes[i].IsAnonymous() == *ru.Anonymous },
		})
	}
	if ru.FieldCount.Active() {
		cons = append(cons, constraint{
			match: func(i int) bool { return ru.FieldCount.Match(len(classes[i].Fields)) },
		})
	}
	if ru.MethodCount.Active() {
		cons = append(cons, constraint{
			match: func(i int) bool {
				n := 0
				for _, m := range classes[i].Methods {
					if !m.IsConstructor() {
						n++
					}
				}
				return ru.MethodCount.Match(n)
			},
		})
	}
	if ru.ConstructorCount.Active() {
		cons = append(cons, constraint{
			match: func(i int) bool {
				n := 0
				for _, m := range classes[i].Methods {
					if m.Name == "<init>" {
						n++
					}
				}
				return ru.ConstructorCount.Match(n)
			},
		})
	}

	// Nested member rules count qualifying members through the member
	// matcher without materializing them as results.
	for _, fr := range ru.Fields {
		fr := fr
		cons = append(cons, constraint{
			match: func(i int) bool {
				n := len(r.matchFields(classes[i], fr))
				if fr.MatchCount.Active() {
					return fr.MatchCount.Match(n)
				}
				return n > 0
			},
		})
	}
	for _, mr := range ru.Methods {
		mr := mr
		cons = append(cons, constraint{
			match: func(i int) bool {
				n := len(r.matchMethods(classes[i], mr))
				if mr.MatchCount.Active() {
					return mr.MatchCount.Match(n)
				}
				return n > 0
			},
		})
	}

	if ru.Predicate != nil {
		cons = append(cons, constraint{
			match: func(i int) bool { return ru.Predicate(classes[i]) },
		})
	}

	idxs := matchPositions(len(classes), cons, ru.Index)
	if len(idxs) == 0 {
		return nil
	}
	out := make([]*dex.Class, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, classes[i])
	}
	return out
}

func implementsAll(c *dex.Class, want []string) bool {
	for _, w := range want {
		found := false
		for _, have := range c.Interfaces {
			if have == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func packageOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
