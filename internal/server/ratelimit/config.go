package ratelimit

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one method and path
type EndpointConfig struct {
	Path   string        // a trailing "/" matches by prefix
	Method string
	Limit  int           // requests per Window
	Window time.Duration
	Burst  int           // defaults to Limit when 0
}

// Environment variables read by LoadConfig. Rates are written "<limit>/<window>",
// for example "60/1h".
const (
	EnvEnabled         = "RATE_LIMIT_ENABLED"
	EnvDefault         = "RATE_LIMIT_DEFAULT"
	EnvRun             = "RATE_LIMIT_RUN"
	EnvCheck           = "RATE_LIMIT_CHECK"
	EnvCleanupInterval = "RATE_LIMIT_CLEANUP_INTERVAL"
	EnvIdleTTL         = "RATE_LIMIT_IDLE_TTL"
	EnvWhitelist       = "RATE_LIMIT_WHITELIST"
	EnvBlacklist       = "RATE_LIMIT_BLACKLIST"
)

// Endpoint tiers. Runs may call the judge, rewriter and quality model for every
// field; checks are deterministic.
var (
	runEndpoints   = []string{"/v1/pipeline/run", "/v1/pipeline/run/stream"}
	checkEndpoints = []string{"/v1/pipeline/scan", "/v1/pipeline/revert"}
)

type tier struct {
	limit  int
	window time.Duration
	burst  int
}

var (
	runTier   = tier{limit: 60, window: time.Hour, burst: 5}
	checkTier = tier{limit: 300, window: time.Minute, burst: 30}
)

// DefaultEndpointConfigs returns the POST limits of the pipeline endpoints. Audit
// reads use the default limit and health is unlimited (see MatchEndpoint).
func DefaultEndpointConfigs() []EndpointConfig {
	return endpointConfigs(runTier, checkTier)
}

func endpointConfigs(run, check tier) []EndpointConfig {
	var configs []EndpointConfig
	for _, path := range runEndpoints {
		configs = append(configs, EndpointConfig{Path: path, Method: "POST", Limit: run.limit, Window: run.window, Burst: run.burst})
	}
	for _, path := range checkEndpoints {
		configs = append(configs, EndpointConfig{Path: path, Method: "POST", Limit: check.limit, Window: check.window, Burst: check.burst})
	}
	return configs
}

// LoadConfig builds a Config from the environment on top of DefaultConfig.
// Malformed values are errors rather than silently ignored.
func LoadConfig() (*Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	cfg.EndpointConfigs = DefaultEndpointConfigs()

	if v, ok := lookup(EnvEnabled); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvEnabled, err)
		}
		if !enabled {
			return &Config{Enabled: false}, nil
		}
	}

	if v, ok := lookup(EnvDefault); ok && v != "" {
		limit, window, err := ParseRate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDefault, err)
		}
		cfg.DefaultLimit, cfg.DefaultWindow = limit, window
	}

	run, check := runTier, checkTier
	for _, o := range []struct {
		key string
		t   *tier
	}{{EnvRun, &run}, {EnvCheck, &check}} {
		v, ok := lookup(o.key)
		if !ok || v == "" {
			continue
		}
		limit, window, err := ParseRate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", o.key, err)
		}
		o.t.limit, o.t.window = limit, window
		if o.t.burst > limit {
			o.t.burst = limit
		}
	}
	cfg.EndpointConfigs = endpointConfigs(run, check)

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{{EnvCleanupInterval, &cfg.CleanupInterval}, {EnvIdleTTL, &cfg.IdleTTL}} {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid %s: %q", d.key, v)
		}
		*d.dst = parsed
	}

	var err error
	if cfg.Whitelist, err = addressSet(lookup, EnvWhitelist); err != nil {
		return nil, err
	}
	if cfg.Blacklist, err = addressSet(lookup, EnvBlacklist); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseRate parses "<limit>/<window>". The window may omit its count, so
// "100/m" is the same as "100/1m".
func ParseRate(s string) (int, time.Duration, error) {
	count, per, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q is not <limit>/<window>", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || limit < 0 {
		return 0, 0, fmt.Errorf("rate %q has an invalid limit", s)
	}
	per = strings.TrimSpace(per)
	if per != "" && (per[0] < '0' || per[0] > '9') {
		per = "1" + per
	}
	window, err := time.ParseDuration(per)
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("rate %q has an invalid window", s)
	}
	return limit, window, nil
}

// addressSet reads a comma-separated list of client IPs. Entries are stored in
// canonical form so they compare equal to the address the server extracts.
func addressSet(lookup func(string) (string, bool), key string) (map[string]bool, error) {
	set := make(map[string]bool)
	v, ok := lookup(key)
	if !ok {
		return set, nil
	}
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, entry, err)
		}
		set[addr.Unmap().String()] = true
	}
	return set, nil
}
