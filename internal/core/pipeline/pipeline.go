// Package pipeline runs the comment and caption analysis stages over collected content.
// Stages run in order: spam, keywords, summary, sentiment, clusters. Each stage is
// guarded; a failing stage leaves its output empty, records a warning and later stages
// continue with whatever exists
package pipeline

import (
	"context"
	"fmt"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/lexicon"
	"audiencepulse/internal/platform/logger"
)

// Stage names as reported in warnings
const (
	StageSpam      = "spam"
	StageKeywords  = "keywords"
	StageSummary   = "summary"
	StageSentiment = "sentiment"
	StageClusters  = "clusters"
)

// TieBreak orders keywords of equal weight when labeling clusters
type TieBreak string

// Tie-break strategies
const (
	TieFirstOccurrence TieBreak = "first_occurrence"
	TieLexical         TieBreak = "lexical"
)

// Options tune the stages; zero values take defaults
type Options struct {
	TopKeywords        int
	SummarySentences   int
	SummaryMaxRunes    int
	SentimentCap       int
	ClusterThreshold   float64
	ClusterTieBreak    TieBreak
	ClusterTopKeywords int
	MaxClusters        int
	BotWeight          float64
}

// Bounds of the sentiment sample
const (
	MinSentimentCap = 500
	MaxSentimentCap = 1000
)

// DefaultOptions returns the stage defaults
func DefaultOptions() Options {
	return Options{
		TopKeywords:        25,
		SummarySentences:   3,
		SummaryMaxRunes:    600,
		SentimentCap:       MaxSentimentCap,
		ClusterThreshold:   0.25,
		ClusterTieBreak:    TieFirstOccurrence,
		ClusterTopKeywords: 5,
		MaxClusters:        10,
		BotWeight:          0.3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopKeywords <= 0 {
		o.TopKeywords = d.TopKeywords
	}
	if o.SummarySentences <= 0 {
		o.SummarySentences = d.SummarySentences
	}
	if o.SummaryMaxRunes <= 0 {
		o.SummaryMaxRunes = d.SummaryMaxRunes
	}
	o.SentimentCap = ClampSentimentCap(o.SentimentCap)
	if o.ClusterThreshold <= 0 || o.ClusterThreshold >= 1 {
		o.ClusterThreshold = d.ClusterThreshold
	}
	if o.ClusterTieBreak != TieLexical {
		o.ClusterTieBreak = TieFirstOccurrence
	}
	if o.ClusterTopKeywords <= 0 {
		o.ClusterTopKeywords = d.ClusterTopKeywords
	}
	if o.MaxClusters <= 0 {
		o.MaxClusters = d.MaxClusters
	}
	if o.BotWeight <= 0 || o.BotWeight > 1 {
		o.BotWeight = d.BotWeight
	}
	return o
}

// ClampSentimentCap fits n into [500, 1000]; zero means the maximum
func ClampSentimentCap(n int) int {
	switch {
	case n <= 0:
		return MaxSentimentCap
	case n < MinSentimentCap:
		return MinSentimentCap
	case n > MaxSentimentCap:
		return MaxSentimentCap
	}
	return n
}

// StageWarning records a stage that failed and was skipped
type StageWarning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Artifact accumulates the outputs of every stage for one job
type Artifact struct {
	Comments  []FilteredComment `json:"-"`
	Spam      SpamStats         `json:"spam"`
	Keywords  []Keyword         `json:"keywords"`
	Summary   string            `json:"summary"`
	Sentiment Sentiment         `json:"sentiment"`
	Clusters  []Cluster         `json:"clusters"`
	Warnings  []StageWarning    `json:"warnings,omitempty"`
}

type stage struct {
	name  string
	run   func(*run)
	reset func(*Artifact)
}

// run is the per-invocation state shared by the stages
type run struct {
	p     *Pipeline
	items []content.Item
	art   *Artifact
	docs  []document

	sentimentCap int
}

// Pipeline is safe for concurrent use; each Run has its own state
type Pipeline struct {
	lx     *lexicon.Lexicon
	opt    Options
	spam   spamRules
	stages []stage
}

// New builds a pipeline over lx
func New(lx *lexicon.Lexicon, opt Options) *Pipeline {
	p := &Pipeline{lx: lx, opt: opt.withDefaults(), spam: compileSpam(lx)}
	p.stages = []stage{
		{StageSpam, (*run).filterSpam, func(a *Artifact) { a.Spam = SpamStats{} }},
		{StageKeywords, (*run).extractKeywords, func(a *Artifact) { a.Keywords = nil }},
		{StageSummary, (*run).summarize, func(a *Artifact) { a.Summary = "" }},
		{StageSentiment, (*run).scoreSentiment, func(a *Artifact) { a.Sentiment = Sentiment{} }},
		{StageClusters, (*run).cluster, func(a *Artifact) { a.Clusters = nil }},
	}
	return p
}

// Options returns the effective options
func (p *Pipeline) Options() Options { return p.opt }

// Run executes every stage over items in collection order
func (p *Pipeline) Run(ctx context.Context, items []content.Item) Artifact {
	return p.RunWith(ctx, items, p.opt.SentimentCap)
}

// RunWith is Run with a per-request sentiment cap
func (p *Pipeline) RunWith(ctx context.Context, items []content.Item, sentimentCap int) Artifact {
	var art Artifact
	r := &run{p: p, items: items, art: &art, sentimentCap: ClampSentimentCap(sentimentCap)}
	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			art.Warnings = append(art.Warnings, StageWarning{Stage: st.name, Message: "skipped: " + err.Error()})
			continue
		}
		r.guard(ctx, st)
	}
	return art
}

func (r *run) guard(ctx context.Context, st stage) {
	defer func() {
		if rec := recover(); rec != nil {
			st.reset(r.art)
			if st.name == StageSpam {
				r.passthrough()
			}
			msg := fmt.Sprint(rec)
			r.art.Warnings = append(r.art.Warnings, StageWarning{Stage: st.name, Message: msg})
			logger.C(ctx).Warn().Str("stage", st.name).Str("panic", msg).Msg("pipeline stage failed")
		}
	}()
	st.run(r)
}
