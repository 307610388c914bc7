package main

import (
	nethttp "net/http"

	analyticshttp "go-shortlink/internal/analytics/delivery/http"
	"go-shortlink/internal/analytics/geo"
	"go-shortlink/internal/analytics/pipeline"
	clicksql "go-shortlink/internal/analytics/repository/sqlstore"
	analyticsuc "go-shortlink/internal/analytics/usecase"
	"go-shortlink/internal/conf"
	"go-shortlink/internal/data"
	"go-shortlink/internal/ratelimit"
	"go-shortlink/internal/redirect/cache"
	httphandler "go-shortlink/internal/redirect/delivery/http"
	linksql "go-shortlink/internal/redirect/repository/sqlstore"
	"go-shortlink/internal/redirect/usecase"
	"go-shortlink/internal/webhook"
	webhooksql "go-shortlink/internal/webhook/repository/sqlstore"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var repositorySet = wire.NewSet(
	linksql.NewLinkRepository,
	clicksql.NewClickRepository,
	webhooksql.NewEndpointRepository,
)

var notifySet = wire.NewSet(
	newWebhookClient,
	newDispatcher,
	newCollector,
	newIntegrations,
	newEmitter,
)

var clickSet = wire.NewSet(
	newGeoResolver,
	newProcessor,
)

var edgeSet = wire.NewSet(
	newPipeline,
	newLinkCache,
	newSessionSigner,
	newResolver,
	newLimiter,
	newHealthChecks,
	newAnalyticsHandler,
	newRouter,
)

func newWebhookClient(c conf.Webhook) *nethttp.Client {
	return webhook.NewHTTPClient(c.Timeout.Std(), c.AllowPrivateNetworks)
}

func newDispatcher(c conf.Webhook, endpoints *webhooksql.EndpointRepository, client *nethttp.Client, logger *zap.Logger) *webhook.Dispatcher {
	return webhook.NewDispatcher(webhook.Config{
		Secret:     c.Secret,
		Timeout:    c.Timeout.Std(),
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay.Std(),
	}, endpoints, client, logger)
}

// newCollector returns nil when no collector endpoint is configured.
func newCollector(c conf.Integrations, client *nethttp.Client, logger *zap.Logger) *webhook.CollectorTarget {
	if c.Collector.URL == "" {
		return nil
	}
	return webhook.NewCollectorTarget(webhook.CollectorConfig{
		URL:           c.Collector.URL,
		WriteKey:      c.Collector.WriteKey,
		Events:        c.Collector.Events,
		BatchSize:     c.Collector.BatchSize,
		FlushInterval: c.Collector.FlushInterval.Std(),
	}, client, logger)
}

func newIntegrations(c conf.Integrations, wh conf.Webhook, client *nethttp.Client, collector *webhook.CollectorTarget, logger *zap.Logger) *webhook.IntegrationDispatcher {
	var targets []webhook.Target
	if c.Generic.URL != "" {
		targets = append(targets, webhook.NewGenericTarget(c.Generic.URL, c.Generic.Events, client))
	}
	if c.Chat.URL != "" {
		targets = append(targets, webhook.NewChatTarget(c.Chat.URL, c.Chat.Events, client))
	}
	if collector != nil {
		targets = append(targets, collector)
	}
	logger.Info("integrations configured", zap.Strings("targets", lo.Map(targets, func(t webhook.Target, _ int) string {
		return t.Name()
	})))
	return webhook.NewIntegrationDispatcher(targets, wh.Timeout.Std(), logger)
}

func newEmitter(d *webhook.Dispatcher, i *webhook.IntegrationDispatcher) webhook.Emitter {
	return webhook.Emitters{d, i}
}

func newGeoResolver(c conf.Geo, logger *zap.Logger) (*geo.Resolver, func(), error) {
	r, err := geo.NewResolver(c.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}

func newProcessor(g *geo.Resolver, clicks *clicksql.ClickRepository, links *linksql.LinkRepository, emitter webhook.Emitter, logger *zap.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(g, clicks, links, emitter, logger)
}

func newPipeline(q pipeline.Queue, p *pipeline.Processor, logger *zap.Logger) *pipeline.Pipeline {
	return pipeline.NewPipeline(q, p, logger)
}

func newWorker(c conf.Worker, q pipeline.Queue, p *pipeline.Processor, logger *zap.Logger) *pipeline.Worker {
	return pipeline.NewWorker(q, p, pipeline.WorkerConfig{
		ConsumerID:      c.ConsumerID,
		Concurrency:     c.Concurrency,
		PollTimeout:     c.PollTimeout.Std(),
		ReclaimInterval: c.ReclaimInterval.Std(),
	}, logger)
}

func newLinkCache(rdb redis.UniversalClient, logger *zap.Logger) cache.LinkCache {
	return cache.NewLinkCache(rdb, logger)
}

func newSessionSigner(c conf.Redirect, logger *zap.Logger) (*usecase.SessionSigner, error) {
	if c.SessionSecret == "" {
		logger.Warn("redirect session secret not set, password sessions will not survive a restart")
	}
	return usecase.NewSessionSigner(c.SessionSecret, c.CookiePrefix, c.SessionTTL.Std())
}

func newResolver(c conf.Redirect, linkCache cache.LinkCache, links *linksql.LinkRepository, clicks *pipeline.Pipeline, sessions *usecase.SessionSigner, logger *zap.Logger) *usecase.Resolver {
	return usecase.NewResolver(usecase.Config{
		CacheTTL:        c.CacheTTL.Std(),
		DeepLinkTimeout: c.DeepLinkTimeout.Std(),
		EnqueueTimeout:  c.EnqueueTimeout.Std(),
	}, linkCache, links, clicks, sessions, logger)
}

func newLimiter(c conf.RateLimit, orgs conf.Orgs, rdb redis.UniversalClient, logger *zap.Logger) *ratelimit.Limiter {
	var store ratelimit.Store
	if rdb != nil {
		store = ratelimit.NewRedisStore(rdb)
	}
	plans := lo.MapValues(orgs.Plans, func(p conf.Plan, _ string) ratelimit.Plan {
		return ratelimit.Plan{RateLimitPerMinute: p.RateLimitPerMinute, RetentionDays: p.RetentionDays}
	})
	return ratelimit.NewLimiter(ratelimit.Config{
		Window: c.Window.Std(),
		Budgets: map[ratelimit.Scope]int{
			ratelimit.ScopeIP:       c.IP,
			ratelimit.ScopeRedirect: c.Redirect,
			ratelimit.ScopeUser:     c.User,
			ratelimit.ScopeAuth:     c.Auth,
		},
		BypassToken: c.BypassToken,
	}, store, ratelimit.NewStaticOrgSettings(orgs.DefaultPlan, plans, orgs.Members), logger)
}

func newHealthChecks(d *data.Data) map[string]httphandler.Check {
	checks := map[string]httphandler.Check{"database": d.PingDB}
	if d.Redis != nil {
		checks["redis"] = d.PingRedis
	}
	return checks
}

func newAnalyticsHandler(clicks *clicksql.ClickRepository, links *linksql.LinkRepository, logger *zap.Logger) *analyticshttp.Handler {
	return analyticshttp.NewHandler(analyticsuc.NewAnalyticsService(clicks, links), logger)
}

func newRouter(c conf.Server, resolver *usecase.Resolver, linkCache cache.LinkCache, emitter webhook.Emitter, endpoints *webhooksql.EndpointRepository, analytics *analyticshttp.Handler, limiter *ratelimit.Limiter, checks map[string]httphandler.Check, logger *zap.Logger) (nethttp.Handler, error) {
	if c.InternalToken == "" {
		logger.Warn("internal token not set, the internal API will reject every request")
	}
	trusted, err := ratelimit.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if len(trusted) == 0 {
		logger.Info("no trusted proxies configured, forwarding headers are ignored")
	}
	return httphandler.NewRouter(
		httphandler.NewHandler(resolver, logger),
		httphandler.NewInternalHandler(linkCache, emitter, endpoints, logger),
		analytics,
		httphandler.NewHealthHandler(checks, logger),
		limiter,
		trusted,
		c.InternalToken,
		logger,
	), nil
}
