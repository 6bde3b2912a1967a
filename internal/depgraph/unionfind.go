package depgraph

// unionFind is a disjoint-set over event numbers with path compression and
// union by rank.
type unionFind struct {
	parent map[int64]int64
	rank   map[int64]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[int64]int64),
		rank:   make(map[int64]int),
	}
}

func (uf *unionFind) add(x int64) {
	if _, ok := uf.parent[x]; ok {
		return
	}
	uf.parent[x] = x
}

func (uf *unionFind) find(x int64) int64 {
	if _, ok := uf.parent[x]; !ok {
		uf.add(x)
		return x
	}
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y int64) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

func (uf *unionFind) components() map[int64][]int64 {
	groups := make(map[int64][]int64)
	for x := range uf.parent {
		root := uf.find(x)
		groups[root] = append(groups[root], x)
	}
	return groups
}
