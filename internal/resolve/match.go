package resolve

import "github.com/roach88/dexscope/internal/rule"

// constraint is one active rule predicate bound to a candidate list by
// index.
type constraint struct {
	optional bool
	sel      *rule.IndexSelector
	match    func(i int) bool
}

// matchPositions runs the two-pass positional matcher over n candidates
// and returns the accepted candidate indices in declaration order.
//
// Pass 1 computes, for each constraint, the index of its last matching
// candidate counted over that constraint alone. Pass 2 walks the
// candidates again keeping a running occurrence index per constraint;
// a candidate is accepted when every non-optional constraint holds and
// every constraint-level IndexSelector resolves to the candidate's
// occurrence index. A rule-level orderSel finally narrows the accepted
// list to a single position.
func matchPositions(n int, cons []constraint, orderSel *rule.IndexSelector) []int {
	last := make([]int, len(cons))
	for k := range cons {
		last[k] = -1
	}
	for i := 0; i < n; i++ {
		for k := range cons {
			if cons[k].match(i) {
				last[k]++
			}
		}
	}

	occ := make([]int, len(cons))
	var accepted []int
	for i := 0; i < n; i++ {
		ok := true
		posOK := true
		for k := range cons {
			if cons[k].match(i) {
				idx := occ[k]
				occ[k]++
				if cons[k].sel != nil {
					want, in := cons[k].sel.Resolve(last[k])
					if !in || idx != want {
						posOK = false
					}
				}
			} else if !cons[k].optional {
				ok = false
			}
		}
		if ok && posOK {
			accepted = append(accepted, i)
		}
	}

	if orderSel != nil {
		want, in := orderSel.Resolve(len(accepted) - 1)
		if !in {
			return nil
		}
		accepted = accepted[want : want+1]
	}
	return accepted
}
