package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"audiencepulse/internal/modkit"
	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
	pulsemod "audiencepulse/internal/services/pulse/module"
)

func main() {
	_ = config.LoadDotEnv()
	root := config.New()
	l := logger.Get()

	var (
		posts     = flag.Int("posts", 0, "posts per target (0 = platform default)")
		comments  = flag.Int("comments", 0, "comments per post (0 = 1000)")
		sentiment = flag.Int("sentiment", 0, "comments scored for sentiment (500..1000)")
		lexicon   = flag.String("lexicon", "", "YAML lexicon overlay")
		pretty    = flag.Bool("pretty", true, "indent the JSON report")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <link> [link...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pulsemod.FromConfig(root)
	opts.CacheBackend = pulsemod.CacheMemory
	if *lexicon != "" {
		opts.LexiconFile = *lexicon
	}
	// the CLI waits for the answer however long collection takes
	opts.Service.AsyncWait = 1<<63 - 1
	opts.Service.AsyncComments = 1<<31 - 1

	m, err := pulsemod.New(ctx, modkit.Deps{Cfg: root, Log: *l}, opts)
	if err != nil {
		l.Fatal().Err(err).Msg("pulse module init failed")
	}
	defer func() { _ = m.Close(context.Background()) }()

	out, err := m.Service().Analyze(ctx, domain.Request{
		Links:          flag.Args(),
		PostLimit:      *posts,
		CommentLimit:   *comments,
		SentimentLimit: *sentiment,
		Mode:           domain.ModeSync,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("analysis failed")
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if out.Job.State == domain.StateFailed && out.Job.Error != nil {
		l.Error().Str("code", string(out.Job.Error.Code)).Msg(strings.TrimSpace(out.Job.Error.Message))
		_ = enc.Encode(out.Job)
		os.Exit(1)
	}
	if err := enc.Encode(out.Job.Report); err != nil {
		l.Fatal().Err(err).Msg("encode report")
	}
}
