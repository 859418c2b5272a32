// Package cache is the process-wide memoization layer for resolution
// results: class-name lists per loader identity, and resolved class or
// member sets per (scope, rule) key.
//
// Entries are created lazily on first successful resolution and live
// until the process exits; there is no eviction. Concurrent first
// resolutions for the same key may duplicate work, which is idempotent:
// both compute the same set and the map keeps one of them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dexscope/internal/dex"
)

// Domain prefixes for cache-key hashing. The version suffix allows
// future key-layout migration without colliding with old entries.
const (
	domainClassNames = "dexscope/classnames/v1"
	domainClasses    = "dexscope/classes/v1"
	domainFields     = "dexscope/fields/v1"
	domainMethods    = "dexscope/methods/v1"
)

// key computes SHA-256 over domain and parts with NUL separation. The
// separator prevents boundary ambiguity between parts; strings are NFC
// normalized so equal identifiers hash equally regardless of their
// Unicode composition.
func key(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(norm.NFC.String(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ClassNamesKey keys the class-name list of one loader.
func ClassNamesKey(loaderID string) string {
	return key(domainClassNames, loaderID)
}

// ClassesKey keys a class-set resolution.
func ClassesKey(loaderID, discriminant string) string {
	return key(domainClasses, loaderID, discriminant)
}

// FieldsKey keys a field resolution against one class.
func FieldsKey(classID, discriminant string) string {
	return key(domainFields, classID, discriminant)
}

// MethodsKey keys a method or constructor resolution against one class.
func MethodsKey(classID, discriminant string) string {
	return key(domainMethods, classID, discriminant)
}

// Store holds the memoized resolution results. The zero value is not
// usable; construct with New.
type Store struct {
	classNames *xsync.MapOf[string, []string]
	classes    *xsync.MapOf[string, []*dex.Class]
	fields     *xsync.MapOf[string, []dex.Field]
	methods    *xsync.MapOf[string, []dex.Method]
}

// New builds an empty store.
func New() *Store {
	return &Store{
		classNames: xsync.NewMapOf[string, []string](),
		classes:    xsync.NewMapOf[string, []*dex.Class](),
		fields:     xsync.NewMapOf[string, []dex.Field](),
		methods:    xsync.NewMapOf[string, []dex.Method](),
	}
}

// Shared is the process-wide store used by default resolvers.
var Shared = New()

// ClassNames returns the cached class-name list for key, if present.
func (s *Store) ClassNames(k string) ([]string, bool) {
	return s.classNames.Load(k)
}

// PutClassNames stores a class-name list, returning the canonical
// value (an earlier concurrent insert wins).
func (s *Store) PutClassNames(k string, v []string) []string {
	actual, _ := s.classNames.LoadOrStore(k, v)
	return actual
}

// Classes returns a cached class set.
func (s *Store) Classes(k string) ([]*dex.Class, bool) {
	return s.classes.Load(k)
}

// PutClasses stores a class set, returning the canonical value.
func (s *Store) PutClasses(k string, v []*dex.Class) []*dex.Class {
	actual, _ := s.classes.LoadOrStore(k, v)
	return actual
}

// Fields returns a cached field set.
func (s *Store) Fields(k string) ([]dex.Field, bool) {
	return s.fields.Load(k)
}

// PutFields stores a field set, returning the canonical value.
func (s *Store) PutFields(k string, v []dex.Field) []dex.Field {
	actual, _ := s.fields.LoadOrStore(k, v)
	return actual
}

// Methods returns a cached method set.
func (s *Store) Methods(k string) ([]dex.Method, bool) {
	return s.methods.Load(k)
}

// PutMethods stores a method set, returning the canonical value.
func (s *Store) PutMethods(k string, v []dex.Method) []dex.Method {
	actual, _ := s.methods.LoadOrStore(k, v)
	return actual
}
