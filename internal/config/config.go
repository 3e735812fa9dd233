// Package config loads daemon settings from an optional YAML file with
// CERTEN_* environment variable overrides applied on top.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the effective daemon configuration.
type Config struct {
	ListenAddr      string        `yaml:"listenAddr"`
	DataDir         string        `yaml:"dataDir"`
	RPCToken        string        `yaml:"rpcToken"`
	AutoLockTimeout time.Duration `yaml:"autoLockTimeout"`
	KDFIterations   int           `yaml:"kdfIterations"`
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RateLimitRPS    float64       `yaml:"rateLimitRps"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
}

func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8555",
		DataDir:        defaultDataDir(),
		SweepInterval:  30 * time.Second,
		RequestTimeout: 2 * time.Minute,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		// Zero AutoLockTimeout and KDFIterations select the vault's
		// own defaults.
	}
}

// LoadFromPath reads the config file if present, merges it over defaults
// and applies env overrides. A missing or unparseable file is skipped, not
// fatal; the daemon must come up with defaults alone.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/vaultd.yaml",
			"vaultd.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies set fields of src over dst. Zero values in src leave dst
// untouched.
func Merge(dst *Config, src Config) {
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.RPCToken != "" {
		dst.RPCToken = src.RPCToken
	}
	if src.AutoLockTimeout != 0 {
		dst.AutoLockTimeout = src.AutoLockTimeout
	}
	if src.KDFIterations != 0 {
		dst.KDFIterations = src.KDFIterations
	}
	if src.SweepInterval != 0 {
		dst.SweepInterval = src.SweepInterval
	}
	if src.RequestTimeout != 0 {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.RateLimitRPS != 0 {
		dst.RateLimitRPS = src.RateLimitRPS
	}
	if src.RateLimitBurst != 0 {
		dst.RateLimitBurst = src.RateLimitBurst
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := envString("CERTEN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := envString("CERTEN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := envString("CERTEN_RPC_TOKEN"); v != "" {
		cfg.RPCToken = v
	}
	if v := envDuration("CERTEN_AUTO_LOCK_TIMEOUT"); v != 0 {
		cfg.AutoLockTimeout = v
	}
	if v := envInt("CERTEN_KDF_ITERATIONS"); v != 0 {
		cfg.KDFIterations = v
	}
	if v := envDuration("CERTEN_SWEEP_INTERVAL"); v != 0 {
		cfg.SweepInterval = v
	}
	if v := envDuration("CERTEN_REQUEST_TIMEOUT"); v != 0 {
		cfg.RequestTimeout = v
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".certen-vault"
	}
	return home + "/.certen-vault"
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) int {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envDuration(key string) time.Duration {
	raw := envString(key)
	if raw == "" {
		return 0
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return parsed
}
