package pipeline

import (
	"strings"

	"audiencepulse/internal/core/lexicon"
	"audiencepulse/internal/core/normalize"
)

// Reasons a comment is dropped by the spam stage
const (
	DropEmpty    = "empty"
	DropPhrase   = "spam_phrase"
	DropLinkBait = "link_bait"
	DropFlooding = "flooding"
)

const (
	floodRun          = 8   // a single rune repeated this often is flooding
	lowDiversityMin   = 6   // tokens needed before diversity is judged
	lowDiversityRatio = 0.4 // unique/total below this reads as templated
)

// FilteredComment is a comment that survived the spam stage
type FilteredComment struct {
	ItemID  string
	Text    string
	Lang    string
	Tokens  []string
	Weight  float64
	BotLike bool
}

// SpamStats summarizes the spam stage
type SpamStats struct {
	Total   int            `json:"total"`
	Kept    int            `json:"kept"`
	BotLike int            `json:"bot_like"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

type spamRules struct {
	phrases []string // token-joined and space padded
	cta     []string
}

func joinPadded(tokens []string) string { return " " + strings.Join(tokens, " ") + " " }

func compileSpam(lx *lexicon.Lexicon) spamRules {
	var sr spamRules
	for _, p := range lx.SpamPhrases {
		if toks := normalize.Tokens(p); len(toks) > 0 {
			sr.phrases = append(sr.phrases, joinPadded(toks))
		}
	}
	for _, p := range lx.CallsToAction {
		if toks := normalize.Tokens(p); len(toks) > 0 {
			sr.cta = append(sr.cta, joinPadded(toks))
		}
	}
	return sr
}

// classify returns a drop reason, or "" when the comment is kept
func (sr spamRules) classify(text, norm string, tokens []string) string {
	if norm == "" {
		return DropEmpty
	}
	if normalize.LongestRun(norm) >= floodRun {
		return DropFlooding
	}
	joined := joinPadded(tokens)
	for _, p := range sr.phrases {
		if strings.Contains(joined, p) {
			return DropPhrase
		}
	}
	if normalize.HasURL(text) {
		for _, c := range sr.cta {
			if strings.Contains(joined, c) {
				return DropLinkBait
			}
		}
	}
	return ""
}

func lowDiversity(tokens []string) bool {
	if len(tokens) < lowDiversityMin {
		return false
	}
	uniq := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		uniq[t] = struct{}{}
	}
	return float64(len(uniq))/float64(len(tokens)) < lowDiversityRatio
}

func (r *run) filterSpam() {
	stats := SpamStats{Dropped: map[string]int{}}
	seen := make(map[string]struct{})
	var kept []FilteredComment
	for _, it := range r.items {
		for _, c := range it.Comments {
			stats.Total++
			norm := normalize.Text(c.Text)
			tokens := normalize.Tokens(c.Text)
			if reason := r.p.spam.classify(c.Text, norm, tokens); reason != "" {
				stats.Dropped[reason]++
				continue
			}
			fc := FilteredComment{ItemID: it.ID, Text: c.Text, Lang: c.Lang, Tokens: tokens, Weight: 1}
			skel := normalize.Skeleton(norm)
			_, repeat := seen[skel]
			if skel != "" {
				seen[skel] = struct{}{}
			}
			if (repeat && skel != "") || lowDiversity(tokens) {
				fc.Weight = r.p.opt.BotWeight
				fc.BotLike = true
				stats.BotLike++
			}
			kept = append(kept, fc)
		}
	}
	stats.Kept = len(kept)
	if len(stats.Dropped) == 0 {
		stats.Dropped = nil
	}
	r.art.Spam = stats
	r.art.Comments = kept
}

// passthrough keeps every comment at full weight when the spam stage fails
func (r *run) passthrough() {
	r.art.Comments = r.art.Comments[:0]
	for _, it := range r.items {
		for _, c := range it.Comments {
			r.art.Comments = append(r.art.Comments, FilteredComment{
				ItemID: it.ID, Text: c.Text, Lang: c.Lang, Tokens: normalize.Tokens(c.Text), Weight: 1,
			})
		}
	}
}
