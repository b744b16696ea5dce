package pipeline

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"audiencepulse/internal/core/normalize"
	pstrings "audiencepulse/internal/platform/strings"
)

type sentence struct {
	text  string
	pos   int
	score float64
}

// summarize picks the best scoring caption sentences and emits them in their original order
func (r *run) summarize() {
	weights := make(map[string]float64, len(r.art.Keywords))
	for _, k := range r.art.Keywords {
		weights[k.Term] = k.Weight
	}

	var cands []sentence
	seen := map[string]bool{}
	for _, it := range r.items {
		for _, s := range normalize.Sentences(it.Text) {
			key := normalize.Skeleton(normalize.Text(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			toks := normalize.Tokens(s)
			if len(toks) == 0 {
				continue
			}
			var sum float64
			for _, t := range toks {
				sum += weights[t]
			}
			cands = append(cands, sentence{text: s, pos: len(cands), score: sum / math.Sqrt(float64(len(toks)))})
		}
	}
	if len(cands) == 0 {
		r.art.Summary = ""
		return
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].pos < cands[j].pos
	})
	if len(cands) > r.p.opt.SummarySentences {
		cands = cands[:r.p.opt.SummarySentences]
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].pos < cands[j].pos })

	r.art.Summary = joinCapped(cands, r.p.opt.SummaryMaxRunes)
}

// joinCapped joins sentences while they fit max runes; a lone oversized first sentence is cut
func joinCapped(cands []sentence, max int) string {
	var b strings.Builder
	n := 0
	for _, c := range cands {
		l := utf8.RuneCountInString(c.text)
		sep := 0
		if b.Len() > 0 {
			sep = 1
		}
		if n+sep+l > max {
			if b.Len() == 0 {
				return strings.TrimSpace(pstrings.TruncateRunes(c.text, max-1)) + "…"
			}
			continue
		}
		if sep == 1 {
			b.WriteByte(' ')
		}
		b.WriteString(c.text)
		n += sep + l
	}
	return b.String()
}
