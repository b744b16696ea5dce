package pipeline

import (
	"strings"

	"audiencepulse/internal/core/langhint"
	"audiencepulse/internal/core/normalize"
)

// Sentiment classes
const (
	Positive = "positive"
	Neutral  = "neutral"
	Negative = "negative"
)

const (
	polarityThreshold = 0.5
	negationScale     = -0.75
	negationReach     = 3 // tokens a negation word affects
)

// Sentiment is the breakdown over the English subset of sampled comments.
// The *Tenths fields are the exact shares in tenths of a percent and sum to 1000;
// the float percentages are those tenths divided by ten
type Sentiment struct {
	Positive       float64 `json:"positive_pct"`
	Neutral        float64 `json:"neutral_pct"`
	Negative       float64 `json:"negative_pct"`
	PositiveTenths int     `json:"positive_tenths"`
	NeutralTenths  int     `json:"neutral_tenths"`
	NegativeTenths int     `json:"negative_tenths"`
	PositiveCount  int     `json:"positive"`
	NeutralCount   int     `json:"neutral"`
	NegativeCount  int     `json:"negative"`
	Classified     int     `json:"classified"`
	Untagged       int     `json:"untagged"`
	Analyzed       int     `json:"analyzed"`
	Available      int     `json:"available"`
	Capped         bool    `json:"capped"`
}

// isEnglish trusts a language tag when present and falls back to detection
func isEnglish(c FilteredComment) bool {
	if tag := strings.ToLower(strings.TrimSpace(c.Lang)); tag != "" {
		return tag == "en" || strings.HasPrefix(tag, "en-") || strings.HasPrefix(tag, "en_")
	}
	return langhint.IsEnglish(c.Text)
}

func (r *run) scoreSentiment() {
	comments := r.art.Comments
	s := Sentiment{Available: len(comments)}
	if len(comments) > r.sentimentCap {
		comments = comments[:r.sentimentCap]
		s.Capped = true
	}
	for _, c := range comments {
		s.Analyzed++
		if !isEnglish(c) {
			s.Untagged++
			continue
		}
		s.Classified++
		switch Classify(r.p.score(c)) {
		case Positive:
			s.PositiveCount++
		case Negative:
			s.NegativeCount++
		default:
			s.NeutralCount++
		}
	}
	if s.Classified > 0 {
		t := tenths(s.Classified, s.PositiveCount, s.NeutralCount, s.NegativeCount)
		s.PositiveTenths, s.NeutralTenths, s.NegativeTenths = t[0], t[1], t[2]
		s.Positive, s.Neutral, s.Negative = float64(t[0])/10, float64(t[1])/10, float64(t[2])/10
	}
	r.art.Sentiment = s
}

// Classify maps a valence score to a sentiment class
func Classify(score float64) string {
	switch {
	case score >= polarityThreshold:
		return Positive
	case score <= -polarityThreshold:
		return Negative
	}
	return Neutral
}

// Score returns the lexicon valence of text
func (p *Pipeline) Score(text string) float64 {
	return p.score(FilteredComment{Text: text, Tokens: normalize.Tokens(text)})
}

func (p *Pipeline) score(c FilteredComment) float64 {
	var (
		total   float64
		mult    = 1.0
		negLeft int
	)
	for _, t := range c.Tokens {
		if p.lx.IsNegation(t) {
			negLeft = negationReach
			continue
		}
		if m, ok := p.lx.Intensifiers[t]; ok {
			mult *= m
			continue
		}
		v, ok := p.lx.Valence[t]
		if !ok {
			if negLeft > 0 {
				negLeft--
			}
			continue
		}
		v *= mult
		if negLeft > 0 {
			v *= negationScale
			negLeft = 0
		}
		total += v
		mult = 1
	}
	// emoji carry sentiment but never survive tokenizing
	for _, r := range normalize.Text(c.Text) {
		if r < 0x2000 {
			continue
		}
		total += p.lx.Valence[string(r)]
	}
	return total
}

// tenths splits 1000 tenths of a percent over counts with largest-remainder rounding.
// The result always sums to exactly 1000; remainder ties go to the earlier class
func tenths(total int, counts ...int) []int {
	const units = 1000 // tenths of a percent
	out := make([]int, len(counts))
	rems := make([]int, len(counts))
	assigned := 0
	for i, c := range counts {
		out[i] = c * units / total
		rems[i] = c * units % total
		assigned += out[i]
	}
	for left := units - assigned; left > 0; left-- {
		best := -1
		for i := range rems {
			if best < 0 || rems[i] > rems[best] {
				best = i
			}
		}
		out[best]++
		rems[best] = -1
	}
	return out
}
