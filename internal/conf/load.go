package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// EnvPrefix is stripped from environment keys before they are matched.
const EnvPrefix = "SHORTLINK_"

// Load reads a .env file when present, then the YAML config at path, then
// applies numeric and duration overrides from SHORTLINK_* variables.
func Load(path string) (*Bootstrap, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := config.New(
		config.WithSource(
			file.NewSource(path),
			env.NewSource(EnvPrefix),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	bc := Default()
	if err := c.Scan(bc); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	if err := applyOverrides(c, bc); err != nil {
		return nil, err
	}
	return bc, nil
}

// Default returns the built-in configuration that the YAML file overlays.
func Default() *Bootstrap {
	return &Bootstrap{
		Server: Server{Addr: ":8080", Timeout: Duration(10 * time.Second)},
		Data: Data{
			Database: Database{Driver: "sqlite3", Source: "file:shortlink.db?_fk=1"},
			Redis: Redis{
				DialTimeout:  Duration(time.Second),
				ReadTimeout:  Duration(500 * time.Millisecond),
				WriteTimeout: Duration(500 * time.Millisecond),
			},
			Queue: Queue{
				Backend: "redis",
				Key:     "clicks:queue",
				Stream:  "CLICKS",
				Subject: "clicks.recorded",
				Durable: "click-workers",
				AckWait: Duration(30 * time.Second),
			},
		},
		Log: Log{Level: "info", Format: "json"},
		Redirect: Redirect{
			CacheTTL:        Duration(time.Hour),
			CookiePrefix:    "sl",
			SessionTTL:      Duration(24 * time.Hour),
			DeepLinkTimeout: Duration(1500 * time.Millisecond),
			EnqueueTimeout:  Duration(5 * time.Second),
		},
		RateLimit: RateLimit{
			Window:   Duration(time.Minute),
			IP:       60,
			Redirect: 600,
			User:     120,
			Auth:     10,
		},
		Webhook: Webhook{
			Timeout:    Duration(5 * time.Second),
			MaxRetries: 3,
			BaseDelay:  Duration(time.Second),
		},
		Integrations: Integrations{
			Collector: Collector{BatchSize: 50, FlushInterval: Duration(5 * time.Second)},
		},
		Worker: Worker{Concurrency: 4, PollTimeout: Duration(time.Second), ReclaimInterval: Duration(time.Minute)},
		Orgs: Orgs{
			DefaultPlan: "free",
			Plans: map[string]Plan{
				"free": {RateLimitPerMinute: 300, RetentionDays: 30},
			},
		},
	}
}

type override struct {
	key   string
	apply func(string) error
}

func intOverride(key string, dst *int) override {
	return override{key: key, apply: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}}
}

func durationOverride(key string, dst *Duration) override {
	return override{key: key, apply: func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = Duration(d)
		return nil
	}}
}

func boolOverride(key string, dst *bool) override {
	return override{key: key, apply: func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}}
}

func listOverride(key string, dst *[]string) override {
	return override{key: key, apply: func(v string) error {
		*dst = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
		return nil
	}}
}

// applyOverrides handles values YAML placeholders cannot type.
func applyOverrides(c config.Config, bc *Bootstrap) error {
	overrides := []override{
		intOverride("REDIS_DB", &bc.Data.Redis.DB),
		intOverride("RATE_LIMIT_IP", &bc.RateLimit.IP),
		intOverride("RATE_LIMIT_REDIRECT", &bc.RateLimit.Redirect),
		intOverride("RATE_LIMIT_USER", &bc.RateLimit.User),
		intOverride("RATE_LIMIT_AUTH", &bc.RateLimit.Auth),
		intOverride("WEBHOOK_MAX_RETRIES", &bc.Webhook.MaxRetries),
		intOverride("WORKER_CONCURRENCY", &bc.Worker.Concurrency),
		intOverride("COLLECTOR_BATCH_SIZE", &bc.Integrations.Collector.BatchSize),
		durationOverride("WEBHOOK_TIMEOUT", &bc.Webhook.Timeout),
		durationOverride("WEBHOOK_BASE_DELAY", &bc.Webhook.BaseDelay),
		durationOverride("CACHE_TTL", &bc.Redirect.CacheTTL),
		durationOverride("WORKER_POLL_TIMEOUT", &bc.Worker.PollTimeout),
		boolOverride("WEBHOOK_ALLOW_PRIVATE_NETWORKS", &bc.Webhook.AllowPrivateNetworks),
		boolOverride("WORKER_INLINE", &bc.Worker.Inline),
		listOverride("TRUSTED_PROXIES", &bc.Server.TrustedProxies),
	}
	for _, o := range overrides {
		v, err := c.Value(o.key).String()
		if err != nil || v == "" {
			continue
		}
		if err := o.apply(v); err != nil {
			return err
		}
	}
	return nil
}

// LookupEnv reads a prefixed variable directly, for flags that must be known
// before the config file is loaded.
func LookupEnv(key string) (string, bool) {
	return os.LookupEnv(EnvPrefix + key)
}
