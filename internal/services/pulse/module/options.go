package module

import (
	"strings"
	"time"

	"audiencepulse/internal/adapters/notify"
	"audiencepulse/internal/adapters/platforms/graph"
	"audiencepulse/internal/adapters/platforms/youtube"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/pipeline"
	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/services/pulse/cache"
	"audiencepulse/internal/services/pulse/governor"
	"audiencepulse/internal/services/pulse/service"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Options controls the pulse module. Values are read from env and may be overridden
type Options struct {
	Service  service.Config
	Pipeline pipeline.Options

	// LexiconFile is an optional YAML overlay merged over the embedded lexicon
	LexiconFile string

	// Platforms lists the enabled platforms; links to the others are skipped
	Platforms []links.Platform

	CacheBackend    string
	Cache           cache.Options
	JanitorSchedule string

	GovernorWindow time.Duration
	GovernorLimits map[links.Platform]int

	YouTube  youtube.Options
	Graph    graph.Options
	IGUserID string

	NotifySubject string
	Kafka         notify.KafkaConfig

	// StreamOrigins are the origins allowed to open the job event websocket
	StreamOrigins []string
	StreamPing    time.Duration
}

// FromConfig reads PULSE_*, YOUTUBE_*, GRAPH_* and KAFKA_* from root
func FromConfig(root config.Conf) Options {
	p := root.Prefix("PULSE_")
	yt := root.Prefix("YOUTUBE_")
	gr := root.Prefix("GRAPH_")
	kf := root.Prefix("KAFKA_")

	svc := service.DefaultConfig()
	pipe := pipeline.DefaultOptions()

	ytKeys := yt.MayString("API_KEYS", yt.MayString("API_KEY", ""))

	limits := governor.DefaultLimits()
	for pl, def := range limits {
		limits[pl] = p.MayInt("GOVERNOR_LIMIT_"+strings.ToUpper(string(pl)), def)
	}

	var platforms []links.Platform
	for _, s := range p.MayCSV("PLATFORMS", []string{string(links.Instagram), string(links.Facebook), string(links.YouTube)}) {
		platforms = append(platforms, links.Platform(strings.ToLower(s)))
	}

	return Options{
		Service: service.Config{
			Workers:       p.MayIntIn("WORKERS", svc.Workers, 1, 64),
			MaxLinks:      p.MayIntIn("MAX_LINKS", svc.MaxLinks, 1, 50),
			AsyncWait:     p.MayDuration("ASYNC_WAIT", svc.AsyncWait),
			AsyncComments: p.MayInt("ASYNC_COMMENTS", svc.AsyncComments),
			SyncRetryWait: p.MayDuration("SYNC_RETRY_WAIT", svc.SyncRetryWait),
			RetryBudget:   p.MayIntIn("RETRY_BUDGET", svc.RetryBudget, 0, 10),
			RetryMin:      p.MayDuration("RETRY_MIN", svc.RetryMin),
			RetryMaxWait:  p.MayDuration("RETRY_MAX_WAIT", svc.RetryMaxWait),
			NotifyTimeout: p.MayDuration("NOTIFY_TIMEOUT", svc.NotifyTimeout),
		},
		Pipeline: pipeline.Options{
			TopKeywords:        p.MayIntIn("TOP_KEYWORDS", pipe.TopKeywords, 1, 100),
			SummarySentences:   p.MayIntIn("SUMMARY_SENTENCES", pipe.SummarySentences, 1, 10),
			SummaryMaxRunes:    p.MayInt("SUMMARY_MAX_RUNES", pipe.SummaryMaxRunes),
			SentimentCap:       p.MayIntIn("SENTIMENT_CAP", pipe.SentimentCap, pipeline.MinSentimentCap, pipeline.MaxSentimentCap),
			ClusterThreshold:   p.MayFloat64("CLUSTER_THRESHOLD", pipe.ClusterThreshold),
			ClusterTieBreak:    pipeline.TieBreak(p.MayEnum("CLUSTER_TIE_BREAK", string(pipe.ClusterTieBreak), string(pipeline.TieFirstOccurrence), string(pipeline.TieLexical))),
			ClusterTopKeywords: p.MayInt("CLUSTER_TOP_KEYWORDS", pipe.ClusterTopKeywords),
			MaxClusters:        p.MayInt("MAX_CLUSTERS", pipe.MaxClusters),
			BotWeight:          p.MayFloat64("BOT_WEIGHT", pipe.BotWeight),
		},
		LexiconFile: p.MayString("LEXICON_FILE", ""),
		Platforms:   platforms,

		CacheBackend: p.MayEnum("CACHE_BACKEND", CacheMemory, CacheMemory, CacheRedis),
		Cache: cache.Options{
			TTL:      p.MayDuration("CACHE_TTL", cache.DefaultTTL),
			ClaimTTL: p.MayDuration("CACHE_CLAIM_TTL", cache.DefaultClaimTTL),
			Prefix:   p.MayString("CACHE_PREFIX", "pulse:"),
		},
		JanitorSchedule: p.MayString("JANITOR_SCHEDULE", "@every 1m"),

		GovernorWindow: p.MayDuration("GOVERNOR_WINDOW", time.Minute),
		GovernorLimits: limits,

		YouTube: youtube.Options{
			APIKeysCSV:   ytKeys,
			Endpoint:     yt.MayString("ENDPOINT", ""),
			MaxRetryWait: yt.MayDuration("MAX_RETRY_WAIT", 2*time.Second),
		},
		Graph: graph.Options{
			BaseURL:      gr.MayString("BASE_URL", ""),
			Version:      gr.MayString("VERSION", ""),
			Timeout:      gr.MayDuration("TIMEOUT", 15*time.Second),
			TokensCSV:    gr.MayString("TOKENS", gr.MayString("TOKEN", "")),
			MaxRetryWait: gr.MayDuration("MAX_RETRY_WAIT", 2*time.Second),
		},
		IGUserID: gr.MayString("IG_USER_ID", ""),

		NotifySubject: p.MayString("NOTIFY_SUBJECT", "pulse.job"),
		Kafka: notify.KafkaConfig{
			Brokers: kf.MayCSV("BROKERS", nil),
			Topic:   kf.MayString("TOPIC", "pulse.jobs"),
			Timeout: kf.MayDuration("TIMEOUT", 5*time.Second),
		},

		StreamOrigins: root.Prefix("CORE_API_").MayCSV("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost"}),
		StreamPing:    p.MayDuration("STREAM_PING", 30*time.Second),
	}
}

func countCSV(s string) int {
	n := 0
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}
