// Package loader models the class-loader chain a resolution runs
// against: a parent-linked list of loaders, some backed by DEX files
// and some (path or link loaders) backed by nothing visible to the
// engine.
package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dexscope/internal/dex"
)

// ErrNoDexBacking is returned when no loader in a parent chain carries
// DEX files, which leaves the engine with nothing to enumerate.
var ErrNoDexBacking = errors.New("loader: no dex-backed loader in parent chain")

// Loader is one link in a loader chain.
type Loader interface {
	// ID is a stable identity string used as a cache discriminator.
	// Two loaders over identical DEX content share an ID.
	ID() string

	// Name is the human-readable loader name for diagnostics.
	Name() string

	// Parent returns the next loader in the chain, or nil.
	Parent() Loader

	// LoadClass resolves a class visible to this loader, delegating
	// parent-first. The boolean is false when no loader in the chain
	// defines the class.
	LoadClass(name string) (*dex.Class, bool, error)
}

// DexLoader is a loader backed by one or more parsed DEX files.
type DexLoader struct {
	name   string
	parent Loader
	files  []*dex.File
	id     string
}

// NewDexLoader builds a dex-backed loader. Parent may be nil.
func NewDexLoader(name string, parent Loader, files ...*dex.File) *DexLoader {
	var sb strings.Builder
	sb.WriteString(name)
	for _, f := range files {
		fmt.Fprintf(&sb, "/%016x", f.Hash())
	}
	return &DexLoader{name: name, parent: parent, files: files, id: sb.String()}
}

func (l *DexLoader) ID() string     { return l.id }
func (l *DexLoader) Name() string   { return l.name }
func (l *DexLoader) Parent() Loader { return l.parent }

// Files returns the backing DEX files in search order.
func (l *DexLoader) Files() []*dex.File { return l.files }

func (l *DexLoader) LoadClass(name string) (*dex.Class, bool, error) {
	if l.parent != nil {
		c, ok, err := l.parent.LoadClass(name)
		if err != nil || ok {
			return c, ok, err
		}
	}
	for _, f := range l.files {
		c, ok, err := f.Class(name)
		if err != nil {
			return nil, true, fmt.Errorf("loader %s: %w", l.name, err)
		}
		if ok {
			return c, true, nil
		}
	}
	return nil, false, nil
}

// PathLoader is a loader link with no DEX backing of its own; lookups
// delegate straight to the parent. It models the non-dex links that
// appear between an app loader and its dex-backed ancestor.
type PathLoader struct {
	name   string
	parent Loader
}

// NewPathLoader builds a pass-through loader link. Parent may be nil.
func NewPathLoader(name string, parent Loader) *PathLoader {
	return &PathLoader{name: name, parent: parent}
}

func (l *PathLoader) ID() string {
	if l.parent != nil {
		return l.name + "->" + l.parent.ID()
	}
	return l.name
}

func (l *PathLoader) Name() string   { return l.name }
func (l *PathLoader) Parent() Loader { return l.parent }

func (l *PathLoader) LoadClass(name string) (*dex.Class, bool, error) {
	if l.parent == nil {
		return nil, false, nil
	}
	return l.parent.LoadClass(name)
}

// DexBacked walks the chain starting at l and returns the first
// dex-backed loader. Returns ErrNoDexBacking when the chain has none.
func DexBacked(l Loader) (*DexLoader, error) {
	for cur := l; cur != nil; cur = cur.Parent() {
		if dl, ok := cur.(*DexLoader); ok && len(dl.Files()) > 0 {
			return dl, nil
		}
	}
	return nil, ErrNoDexBacking
}

// ClassNames lists every class name reachable through l's backing dex
// chain, in file order then class_defs order.
func ClassNames(l Loader) ([]string, error) {
	dl, err := DexBacked(l)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range dl.Files() {
		out = append(out, f.ClassNames()...)
	}
	return out, nil
}
