package resolve

import (
	"fmt"
	"log/slog"

	"github.com/roach88/dexscope/internal/cache"
	"github.com/roach88/dexscope/internal/dex"
	"github.com/roach88/dexscope/internal/loader"
)

// Resolver evaluates rules against loaders and classes. Resolvers are
// cheap and safe for concurrent use; results of cacheable rules are
// shared through the configured cache store.
type Resolver struct {
	cache *cache.Store
	log   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache replaces the process-wide shared cache store. Mostly
// useful in tests that need isolation.
func WithCache(s *cache.Store) Option {
	return func(r *Resolver) { r.cache = s }
}

// WithLogger sets the logger for best-effort introspection warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New builds a Resolver backed by cache.Shared and slog.Default unless
// overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{cache: cache.Shared, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadClass resolves a class by exact name through the loader chain.
func (r *Resolver) LoadClass(l loader.Loader, name string) (*dex.Class, error) {
	c, ok, err := l.LoadClass(name)
	if err != nil {
		return nil, &Error{Code: CodeMissingClass, Message: fmt.Sprintf("class %s failed to load", name), Scope: l.Name(), Err: err}
	}
	if !ok {
		return nil, newClassNotFound(l.Name(), name)
	}
	return c, nil
}

// classID is the cache identity of one class: its defining file's
// content hash plus its name.
func classID(c *dex.Class) string {
	return fmt.Sprintf("%016x/%s", c.File().Hash(), c.Name)
}

// superclass looks up c's superclass, preferring the loader chain and
// falling back to c's own file when no loader is given. Returns false
// when the superclass is absent or not visible.
func (r *Resolver) superclass(l loader.Loader, c *dex.Class) (*dex.Class, bool) {
	if c.SuperName == "" {
		return nil, false
	}
	var (
		sc  *dex.Class
		ok  bool
		err error
	)
	if l != nil {
		sc, ok, err = l.LoadClass(c.SuperName)
	} else {
		sc, ok, err = c.File().Class(c.SuperName)
	}
	if err != nil {
		// Best effort: an undecodable superclass ends the walk.
		r.log.Warn("superclass introspection failed",
			"class", c.Name, "super", c.SuperName, "error", err)
		return nil, false
	}
	return sc, ok
}
