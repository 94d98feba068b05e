// Package cluster groups records whose names are similar enough to denote
// the same entity and picks a canonical label for each group.
package cluster

import (
	"fmt"
	"math"

	"github.com/ppiankov/concordia/internal/model"
)

// Similarities is a symmetric matrix of pairwise similarities in [0, 100]
type Similarities interface {
	Len() int
	At(i, j int) float64
}

// Cluster agglomerates the records behind m with average linkage and cuts
// the tree at threshold. Two records share a cluster when every merge
// joining their group is at a distance of at most threshold.
//
// Cluster ids start at 1 and follow the first appearance of each cluster in
// record order. With fewer than two records every record is its own
// cluster and no dendrogram is built.
func Cluster(m Similarities, threshold float64) (model.Assignment, *Dendrogram, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, nil, fmt.Errorf("distance threshold %v outside [0, 1]: %w", threshold, model.ErrInvalidConfiguration)
	}

	n := m.Len()
	if n <= 1 {
		assignment := make(model.Assignment, n)
		for i := range assignment {
			assignment[i] = i + 1
		}
		return assignment, nil, nil
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = Distance(m.At(i, j))
			}
		}
	}

	tree := averageLinkage(dist)
	return Cut(tree, threshold), tree, nil
}

// Cut assigns flat cluster ids by cutting the tree at threshold. A subtree
// becomes one cluster when its highest merge is at most threshold.
func Cut(d *Dendrogram, threshold float64) model.Assignment {
	nodes := d.Leaves + len(d.Merges)
	uf := newUnionFind(nodes)

	for k, h := range d.subtreeHeights() {
		if h <= threshold {
			m := d.Merges[k]
			uf.union(m.Left, d.Leaves+k)
			uf.union(m.Right, d.Leaves+k)
		}
	}

	assignment := make(model.Assignment, d.Leaves)
	ids := make(map[int]int)
	for leaf := 0; leaf < d.Leaves; leaf++ {
		root := uf.find(leaf)
		id, ok := ids[root]
		if !ok {
			id = len(ids) + 1
			ids[root] = id
		}
		assignment[leaf] = id
	}

	return assignment
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
