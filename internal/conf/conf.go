// Package conf holds the bootstrap configuration and its loader.
package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of configs/config.yaml.
type Bootstrap struct {
	Server       Server       `json:"server"`
	Data         Data         `json:"data"`
	Log          Log          `json:"log"`
	Redirect     Redirect     `json:"redirect"`
	RateLimit    RateLimit    `json:"rate_limit"`
	Webhook      Webhook      `json:"webhook"`
	Integrations Integrations `json:"integrations"`
	Geo          Geo          `json:"geo"`
	Worker       Worker       `json:"worker"`
	Orgs         Orgs         `json:"orgs"`
}

type Server struct {
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
	// InternalToken guards /internal/v1. Empty disables the internal API.
	InternalToken string `json:"internal_token"`
	// TrustedProxies lists the CIDRs whose forwarding headers name the client.
	TrustedProxies []string `json:"trusted_proxies"`
}

type Data struct {
	Database Database `json:"database"`
	Redis    Redis    `json:"redis"`
	Queue    Queue    `json:"queue"`
}

type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

type Redis struct {
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	DialTimeout  Duration `json:"dial_timeout"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
}

// Queue selects the click queue backend: "redis", "nats" or "none".
type Queue struct {
	Backend string   `json:"backend"`
	Key     string   `json:"key"`
	NATSURL string   `json:"nats_url"`
	Stream  string   `json:"stream"`
	Subject string   `json:"subject"`
	Durable string   `json:"durable"`
	AckWait Duration `json:"ack_wait"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type Redirect struct {
	CacheTTL        Duration `json:"cache_ttl"`
	CookiePrefix    string   `json:"cookie_prefix"`
	SessionSecret   string   `json:"session_secret"`
	SessionTTL      Duration `json:"session_ttl"`
	DeepLinkTimeout Duration `json:"deep_link_timeout"`
	EnqueueTimeout  Duration `json:"enqueue_timeout"`
}

type RateLimit struct {
	Window      Duration `json:"window"`
	IP          int      `json:"ip"`
	Redirect    int      `json:"redirect"`
	User        int      `json:"user"`
	Auth        int      `json:"auth"`
	BypassToken string   `json:"bypass_token"`
}

type Webhook struct {
	Secret               string   `json:"secret"`
	Timeout              Duration `json:"timeout"`
	MaxRetries           int      `json:"max_retries"`
	BaseDelay            Duration `json:"base_delay"`
	AllowPrivateNetworks bool     `json:"allow_private_networks"`
}

type Integrations struct {
	Generic   Target    `json:"generic"`
	Chat      Target    `json:"chat"`
	Collector Collector `json:"collector"`
}

type Target struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type Collector struct {
	URL           string   `json:"url"`
	WriteKey      string   `json:"write_key"`
	Events        []string `json:"events"`
	BatchSize     int      `json:"batch_size"`
	FlushInterval Duration `json:"flush_interval"`
}

type Geo struct {
	DatabasePath string `json:"database_path"`
}

type Worker struct {
	// Inline runs the click workers inside the serve process.
	Inline bool `json:"inline"`
	// ConsumerID is the stable worker name; defaults to the hostname.
	ConsumerID      string   `json:"consumer_id"`
	Concurrency     int      `json:"concurrency"`
	PollTimeout     Duration `json:"poll_timeout"`
	ReclaimInterval Duration `json:"reclaim_interval"`
}

// Orgs maps organisations to plans and plans to rate budgets.
type Orgs struct {
	DefaultPlan string            `json:"default_plan"`
	Plans       map[string]Plan   `json:"plans"`
	Members     map[string]string `json:"members"`
}

type Plan struct {
	RateLimitPerMinute int `json:"rate_limit_per_minute"`
	RetentionDays      int `json:"retention_days"`
}

// Duration decodes both "1.5s" strings and integer nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
