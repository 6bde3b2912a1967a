package depgraph

import (
	"sort"

	"github.com/papapumpkin/seqchart/internal/eventlog"
)

// Chain is a set of events connected by dependencies. Events in different
// chains of the same dependency set are causally independent within it.
type Chain struct {
	ID int
	// EventNumbers is sorted ascending.
	EventNumbers []int64
	// Dependencies lists the chain's edges in dependency order.
	Dependencies []eventlog.MessageDependency
}

// Chains partitions a dependency set into connected chains. Chains are
// ordered by size, largest first, then by their first event number.
func Chains(deps []eventlog.MessageDependency) []Chain {
	if len(deps) == 0 {
		return nil
	}
	uf := newUnionFind()
	for _, d := range deps {
		uf.union(d.Cause, d.Consequence)
	}
	byRoot := make(map[int64]*Chain)
	for root, members := range uf.components() {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		byRoot[root] = &Chain{EventNumbers: members}
	}
	for _, d := range deps {
		c := byRoot[uf.find(d.Cause)]
		c.Dependencies = append(c.Dependencies, d)
	}

	chains := make([]Chain, 0, len(byRoot))
	for _, c := range byRoot {
		eventlog.SortDependencies(c.Dependencies)
		chains = append(chains, *c)
	}
	sort.Slice(chains, func(i, j int) bool {
		if len(chains[i].EventNumbers) != len(chains[j].EventNumbers) {
			return len(chains[i].EventNumbers) > len(chains[j].EventNumbers)
		}
		return chains[i].EventNumbers[0] < chains[j].EventNumbers[0]
	})
	for i := range chains {
		chains[i].ID = i
	}
	return chains
}
