// Package module wires the pulse service, its adapters and its transports
package module

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"audiencepulse/internal/adapters/notify"
	"audiencepulse/internal/adapters/platforms/graph"
	"audiencepulse/internal/adapters/platforms/youtube"
	"audiencepulse/internal/core/lexicon"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/pipeline"
	"audiencepulse/internal/modkit"
	"audiencepulse/internal/modkit/httpkit"
	"audiencepulse/internal/platform/logger"
	str "audiencepulse/internal/platform/strings"

	"audiencepulse/internal/services/pulse/cache"
	"audiencepulse/internal/services/pulse/domain"
	"audiencepulse/internal/services/pulse/governor"
	pulsehttp "audiencepulse/internal/services/pulse/http"
	"audiencepulse/internal/services/pulse/service"
)

// Ports exposes the orchestrator for cross module lookups
type Ports struct {
	Service domain.ServicePort
}

// Module implements the pulse module
type Module struct {
	built modkit.Built
	opts  Options
	ports Ports

	svc      *service.Svc
	gov      *governor.Governor
	cache    domain.Cache
	janitor  *cache.Janitor
	notifier notify.Multi
}

// New builds the module from opts. Backends come from deps.Store when present;
// a redis cache without a redis client falls back to memory
func New(ctx context.Context, deps modkit.Deps, opts Options, mopts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("pulse"), modkit.WithPrefix("/pulse")}, mopts...)...)
	log := logger.Named("pulse")

	lx, err := lexicon.LoadWithOverlay(opts.LexiconFile)
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(lx, opts.Pipeline)

	gov := governor.New(governor.Config{
		Window: opts.GovernorWindow,
		Limits: opts.GovernorLimits,
		Credentials: map[links.Platform][]string{
			links.YouTube:   youtube.Credentials(countCSV(opts.YouTube.APIKeysCSV)),
			links.Instagram: graph.Credentials(countCSV(opts.Graph.TokensCSV)),
			links.Facebook:  graph.Credentials(countCSV(opts.Graph.TokensCSV)),
		},
	}, nil)

	adapters, err := buildAdapters(ctx, opts, gov)
	if err != nil {
		return nil, err
	}

	m := &Module{built: b, opts: opts, gov: gov}

	m.cache = m.openCache(deps, log)
	m.janitor, err = cache.NewJanitor(m.cache, opts.JanitorSchedule)
	if err != nil {
		return nil, err
	}

	m.notifier = notify.Multi{notify.Log{}}
	if deps.Store != nil && deps.Store.NATS != nil {
		m.notifier = append(m.notifier, notify.NewNATS(deps.Store.NATS, opts.NotifySubject))
	}
	if len(opts.Kafka.Brokers) > 0 {
		k, err := notify.NewKafka(opts.Kafka)
		if err != nil {
			return nil, err
		}
		m.notifier = append(m.notifier, k)
	}

	m.svc = service.New(service.Deps{
		Adapters: adapters,
		Governor: gov,
		Cache:    m.cache,
		Notifier: m.notifier,
		Pipeline: pipe,
	}, opts.Service)
	m.ports = Ports{Service: m.svc}
	m.janitor.Start()

	log.Info().
		Int("adapters", len(adapters)).
		Str("cache", opts.CacheBackend).
		Int("notifiers", len(m.notifier)).
		Msg("pulse module ready")
	return m, nil
}

func buildAdapters(ctx context.Context, opts Options, gov domain.Governor) ([]domain.Adapter, error) {
	enabled := map[links.Platform]bool{}
	for _, p := range opts.Platforms {
		enabled[p] = true
	}
	var out []domain.Adapter
	if enabled[links.YouTube] {
		yt, err := youtube.New(ctx, opts.YouTube, gov)
		if err != nil {
			return nil, err
		}
		out = append(out, yt)
	}
	if enabled[links.Instagram] || enabled[links.Facebook] {
		gc := graph.NewClient(opts.Graph, gov)
		if enabled[links.Instagram] {
			out = append(out, graph.NewInstagram(gc, opts.IGUserID))
		}
		if enabled[links.Facebook] {
			out = append(out, graph.NewFacebook(gc))
		}
	}
	return out, nil
}

func (m *Module) openCache(deps modkit.Deps, log *logger.Logger) domain.Cache {
	if strings.EqualFold(m.opts.CacheBackend, CacheRedis) {
		if deps.Store != nil && deps.Store.Redis != nil {
			return cache.NewRedis(deps.Store.Redis, m.opts.Cache)
		}
		log.Warn().Msg("redis cache requested without a redis backend; using memory")
		m.opts.CacheBackend = CacheMemory
	}
	return cache.NewMemory(m.opts.Cache, nil)
}

// MountRoutes mounts the pulse endpoints under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(rr httpkit.Router) {
		pulsehttp.Register(rr, m.svc, pulsehttp.StreamOptions{
			Origins:    m.opts.StreamOrigins,
			PingPeriod: m.opts.StreamPing,
		})
		httpkit.Get(rr, "/governor", func(*http.Request) (any, error) { return m.gov.Snapshot(), nil })
	})
}

// Service returns the orchestrator, for the CLI
func (m *Module) Service() *service.Svc { return m.svc }

// Close stops the janitor, cancels live jobs and closes the notifiers and the cache
func (m *Module) Close(ctx context.Context) error {
	m.janitor.Stop(ctx)
	return errors.Join(m.svc.Close(), m.notifier.Close(), m.cache.Close())
}

// Name is the module name
func (m *Module) Name() string { return str.FirstNonEmpty(m.built.Name, "pulse") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.built.Prefix) }

// Middlewares is the module middleware
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.built.Mw }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
