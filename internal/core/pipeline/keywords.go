package pipeline

import (
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"audiencepulse/internal/core/normalize"
)

// Keyword is one ranked term
type Keyword struct {
	Term            string  `json:"term"`
	Frequency       int     `json:"frequency"`
	Weight          float64 `json:"weight"`
	FirstOccurrence int     `json:"first_occurrence"`
}

// document is one item text or one filtered comment, tokens already filtered to candidate terms
type document struct {
	terms  []string
	weight float64
}

func (r *run) usable(tok string) bool {
	if utf8.RuneCountInString(tok) < 3 || r.p.lx.IsStopword(tok) {
		return false
	}
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return false
	}
	return true
}

func (r *run) filterTerms(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if r.usable(t) {
			out = append(out, t)
		}
	}
	return out
}

// documents are built lazily in collection order: each item text followed by its comments
func (r *run) documents() []document {
	if r.docs != nil {
		return r.docs
	}
	byItem := make(map[string][]FilteredComment, len(r.items))
	for _, c := range r.art.Comments {
		byItem[c.ItemID] = append(byItem[c.ItemID], c)
	}
	docs := make([]document, 0, len(r.items)+len(r.art.Comments))
	for _, it := range r.items {
		if terms := r.filterTerms(normalize.Tokens(it.Text)); len(terms) > 0 {
			docs = append(docs, document{terms: terms, weight: 1})
		}
		for _, c := range byItem[it.ID] {
			if terms := r.filterTerms(c.Tokens); len(terms) > 0 {
				docs = append(docs, document{terms: terms, weight: c.Weight})
			}
		}
		delete(byItem, it.ID)
	}
	r.docs = docs
	return docs
}

type termStat struct {
	freq  int
	tf    float64
	df    int
	first int
}

func (r *run) extractKeywords() {
	docs := r.documents()
	stats := map[string]*termStat{}
	pos := 0
	for _, d := range docs {
		seen := map[string]bool{}
		for _, t := range d.terms {
			st, ok := stats[t]
			if !ok {
				st = &termStat{first: pos}
				stats[t] = st
			}
			st.freq++
			st.tf += d.weight
			if !seen[t] {
				seen[t] = true
				st.df++
			}
			pos++
		}
	}

	n := float64(len(docs))
	kws := make([]Keyword, 0, len(stats))
	for term, st := range stats {
		idf := math.Log((1+n)/(1+float64(st.df))) + 1
		kws = append(kws, Keyword{Term: term, Frequency: st.freq, Weight: st.tf * idf, FirstOccurrence: st.first})
	}
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Weight != kws[j].Weight {
			return kws[i].Weight > kws[j].Weight
		}
		return kws[i].FirstOccurrence < kws[j].FirstOccurrence
	})
	if len(kws) > r.p.opt.TopKeywords {
		kws = kws[:r.p.opt.TopKeywords]
	}
	for i := range kws {
		kws[i].Weight = round(kws[i].Weight, 4)
	}
	r.art.Keywords = kws
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
