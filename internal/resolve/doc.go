// Package resolve is the member-resolution engine: it evaluates rule
// descriptors against a loader's class table or a class's member lists
// and returns the matching set, or a diagnostic not-found error.
//
// MATCHING MODEL:
//
// Every active constraint on a rule is evaluated per candidate and
// combined with AND semantics; predicates marked Optional never veto a
// candidate, they only take part in positional disambiguation. For
// positional selection the engine keeps, per constraint, a running
// occurrence index over the candidates satisfying that constraint
// alone, precomputes the last such occurrence, and accepts a candidate
// only when its occurrence index resolves against the constraint's
// IndexSelector. Accepted members keep declaration order.
//
// An empty result with super-search enabled retries the same rule one
// superclass at a time. Results for cacheable rules are memoized in
// the process-wide cache store.
package resolve
