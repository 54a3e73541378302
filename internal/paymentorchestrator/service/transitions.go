package service

import (
	orchdomain "github.com/smallbiznis/pspcore/internal/paymentorchestrator/domain"
)

// directTransitions is the single-hop state machine table from §4.3.
var directTransitions = map[orchdomain.Status]map[orchdomain.Status]bool{
	orchdomain.StatusDraft: {
		orchdomain.StatusSubmitted: true,
		orchdomain.StatusFailed:    true,
		orchdomain.StatusCanceled:  true,
	},
	orchdomain.StatusSubmitted: {
		orchdomain.StatusAccepted: true,
		orchdomain.StatusFailed:   true,
		orchdomain.StatusCanceled: true,
	},
	orchdomain.StatusAccepted: {
		orchdomain.StatusSettled:  true,
		orchdomain.StatusReturned: true,
	},
	orchdomain.StatusSettled: {
		orchdomain.StatusReturned: true,
	},
}

// multiHopUpgrades lists the out-of-order callback shapes a rail is known to
// coalesce (Resolved Open Question 2): a provider that fires "settled"
// without a preceding "accepted" still lands on a legal intermediate state
// first, so the full chain is applied atomically rather than rejected.
// draft -> settled is deliberately absent: skipping submitted AND accepted
// is not a coalesced notification, it is a different callback entirely.
var multiHopUpgrades = map[orchdomain.Status]map[orchdomain.Status][]orchdomain.Status{
	orchdomain.StatusSubmitted: {
		orchdomain.StatusSettled: {orchdomain.StatusAccepted, orchdomain.StatusSettled},
	},
}

// legalChain returns the ordered sequence of statuses to pass through to get
// from "from" to "to", or ok=false if no legal path exists (including
// backwards moves past a status the instruction already holds).
func legalChain(from, to orchdomain.Status) (chain []orchdomain.Status, ok bool) {
	if from == to {
		return nil, false
	}
	if tos, exists := directTransitions[from]; exists && tos[to] {
		return []orchdomain.Status{to}, true
	}
	if hops, exists := multiHopUpgrades[from]; exists {
		if c, exists2 := hops[to]; exists2 {
			return c, true
		}
	}
	return nil, false
}
