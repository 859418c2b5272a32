// Package rule defines the declarative search descriptors the
// resolution engine evaluates: class, field, method, and constructor
// rules built from per-attribute predicates.
//
// Every predicate is optional-by-absence: an unset predicate leaves the
// attribute unconstrained. A rule with no constraints at all is
// malformed and is rejected before any search runs.
package rule
