package pipeline

import (
	"sort"
)

// Cluster is a labeled group of related keywords
type Cluster struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	Weight   float64  `json:"weight"`

	first int
}

// unionFind merges keyword indexes; the smaller index always becomes the root
type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(i int) int {
	for uf[i] != i {
		uf[i] = uf[uf[i]]
		i = uf[i]
	}
	return i
}

func (uf unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		uf[rb] = ra
	default:
		uf[ra] = rb
	}
}

func jaccard(a, b map[int]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for d := range a {
		if _, ok := b[d]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// before orders keywords by weight desc, then by the configured tie-break
func (r *run) before(a, b Keyword) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if r.p.opt.ClusterTieBreak == TieLexical {
		return a.Term < b.Term
	}
	return a.FirstOccurrence < b.FirstOccurrence
}

func (r *run) cluster() {
	kws := r.art.Keywords
	if len(kws) == 0 {
		r.art.Clusters = nil
		return
	}

	docSets := make([]map[int]struct{}, len(kws))
	index := make(map[string]int, len(kws))
	for i, k := range kws {
		docSets[i] = map[int]struct{}{}
		index[k.Term] = i
	}
	for di, d := range r.documents() {
		for _, t := range d.terms {
			if i, ok := index[t]; ok {
				docSets[i][di] = struct{}{}
			}
		}
	}

	uf := newUnionFind(len(kws))
	for i := range kws {
		si, iok := r.p.lx.SynonymOf(kws[i].Term)
		for j := i + 1; j < len(kws); j++ {
			sj, jok := r.p.lx.SynonymOf(kws[j].Term)
			if (iok && jok && si == sj) || jaccard(docSets[i], docSets[j]) > r.p.opt.ClusterThreshold {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]Keyword{}
	for i, k := range kws {
		root := uf.find(i)
		groups[root] = append(groups[root], k)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return r.before(members[i], members[j]) })
		c := Cluster{Label: members[0].Term, first: members[0].FirstOccurrence}
		if l, ok := r.p.lx.SynonymOf(members[0].Term); ok {
			c.Label = l
		}
		for i, m := range members {
			c.Weight += m.Weight
			if i < r.p.opt.ClusterTopKeywords {
				c.Keywords = append(c.Keywords, m.Term)
			}
		}
		c.Weight = round(c.Weight, 4)
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Weight != clusters[j].Weight {
			return clusters[i].Weight > clusters[j].Weight
		}
		if clusters[i].Label != clusters[j].Label {
			return clusters[i].Label < clusters[j].Label
		}
		return clusters[i].first < clusters[j].first
	})
	if len(clusters) > r.p.opt.MaxClusters {
		clusters = clusters[:r.p.opt.MaxClusters]
	}
	r.art.Clusters = clusters
}
