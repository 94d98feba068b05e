package cluster

import "math"

// Merge is one step of the agglomeration. Leaves are numbered 0..n-1 and
// the cluster formed by merge k is numbered n+k.
type Merge struct {
	Left     int     `json:"left"`
	Right    int     `json:"right"`
	Distance float64 `json:"distance"`
	Size     int     `json:"size"`
}

// Dendrogram is the average-linkage merge tree over n leaves
type Dendrogram struct {
	Leaves int     `json:"leaves"`
	Merges []Merge `json:"merges"`

	parent []int // node -> merge node that absorbed it, -1 at the root
}

// Distance converts a similarity in [0, 100] to a distance in [0, 1]
func Distance(similarity float64) float64 {
	return (100 - similarity) / 100
}

// averageLinkage builds the UPGMA tree for the given n×n distance matrix.
// The matrix is consumed. Ties are broken by the lowest slot pair.
func averageLinkage(dist [][]float64) *Dendrogram {
	n := len(dist)
	d := &Dendrogram{Leaves: n, Merges: make([]Merge, 0, n-1)}

	active := make([]bool, n)
	ids := make([]int, n)
	sizes := make([]int, n)
	for i := range active {
		active[i] = true
		ids[i] = i
		sizes[i] = 1
	}

	for step := 0; step < n-1; step++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					best, bi, bj = dist[i][j], i, j
				}
			}
		}

		si, sj := sizes[bi], sizes[bj]
		d.Merges = append(d.Merges, Merge{
			Left:     ids[bi],
			Right:    ids[bj],
			Distance: best,
			Size:     si + sj,
		})

		// Lance-Williams update for average linkage
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			v := (float64(si)*dist[bi][k] + float64(sj)*dist[bj][k]) / float64(si+sj)
			dist[bi][k], dist[k][bi] = v, v
		}

		active[bj] = false
		ids[bi] = n + step
		sizes[bi] = si + sj
	}

	d.link()
	return d
}

// link records each node's parent for cophenetic lookups
func (d *Dendrogram) link() {
	d.parent = make([]int, d.Leaves+len(d.Merges))
	for i := range d.parent {
		d.parent[i] = -1
	}
	for k, m := range d.Merges {
		d.parent[m.Left] = d.Leaves + k
		d.parent[m.Right] = d.Leaves + k
	}
}

// Cophenetic returns the merge distance at which leaves i and j first
// share a cluster. A leaf is at distance 0 from itself.
func (d *Dendrogram) Cophenetic(i, j int) float64 {
	if i == j {
		return 0
	}
	if d.parent == nil {
		d.link()
	}

	ancestors := make(map[int]bool)
	for node := i; node >= 0; node = d.parent[node] {
		ancestors[node] = true
	}
	for node := j; node >= 0; node = d.parent[node] {
		if ancestors[node] {
			return d.Merges[node-d.Leaves].Distance
		}
	}
	return math.Inf(1)
}

// subtreeHeights returns, for every merge, the largest merge distance in
// its subtree
func (d *Dendrogram) subtreeHeights() []float64 {
	heights := make([]float64, len(d.Merges))
	for k, m := range d.Merges {
		h := m.Distance
		if m.Left >= d.Leaves {
			h = math.Max(h, heights[m.Left-d.Leaves])
		}
		if m.Right >= d.Leaves {
			h = math.Max(h, heights[m.Right-d.Leaves])
		}
		heights[k] = h
	}
	return heights
}
