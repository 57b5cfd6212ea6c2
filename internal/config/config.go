// Package config loads intentflow settings from a YAML file, an optional
// .env file and INTENTFLOW_* environment variables, in that order of
// increasing precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/auction"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit path is given and the file exists.
const DefaultPath = "intentflow.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INTENTFLOW_"

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Workspace   string            `yaml:"workspace"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
	Replication ReplicationConfig `yaml:"replication"`
	Lock        LockConfig        `yaml:"lock"`
	Security    SecurityConfig    `yaml:"security"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Server      ServerConfig      `yaml:"server"`
	Solver      SolverConfig      `yaml:"solver"`
	Simulate    SimulateConfig    `yaml:"simulate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	Redis   RedisConfig   `yaml:"redis"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ReplicationConfig selects how snapshots reach other replicas.
type ReplicationConfig struct {
	Backend string `yaml:"backend"`
	NATSURL string `yaml:"nats_url"`
	Prefix  string `yaml:"prefix"`
}

// LockConfig selects the distributed locker serializing actions across replicas.
type LockConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// SecurityConfig controls what reaches the snapshot store.
type SecurityConfig struct {
	// EncryptionKey is a 32-byte AES key, 0x-hex or base64 encoded.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	MaskPII       bool     `yaml:"mask_pii"`
	PIIFields     []string `yaml:"pii_fields"`
}

type LifecycleConfig struct {
	StrictStepOrder bool                  `yaml:"strict_step_order"`
	Templates       []domain.StepTemplate `yaml:"templates"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SolverConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SimulateConfig struct {
	Strategy string        `yaml:"strategy"`
	Delay    time.Duration `yaml:"delay"`
	User     string        `yaml:"user"`
}

// Default returns the configuration used when nothing overrides it: a single
// in-memory replica.
func Default() *Config {
	return &Config{
		Workspace: domain.DefaultKey,
		Log:       LogConfig{Level: "info", Format: logging.FormatText},
		Store: StoreConfig{
			Backend: BackendMemory,
			Dir:     ".intentflow",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "intentflow:"},
		},
		Replication: ReplicationConfig{Backend: BackendNone, NATSURL: "nats://localhost:4222", Prefix: "intentflow"},
		Lock:        LockConfig{Backend: BackendNone, TTL: 30 * time.Second},
		Server:      ServerConfig{Addr: ":8080"},
		Solver:      SolverConfig{BaseURL: "http://localhost:8787", Timeout: 30 * time.Second},
		Simulate:    SimulateConfig{Strategy: string(auction.HighestAPY), Delay: 100 * time.Millisecond, User: "0xAlice"},
	}
}

// Load builds the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist. A .env file in the working directory is
// loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from INTENTFLOW_* variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("WORKSPACE", &c.Workspace)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE", &c.Store.Backend)
	str("STORE_DIR", &c.Store.Dir)
	duration("STORE_TTL", &c.Store.TTL)
	str("REDIS_ADDR", &c.Store.Redis.Addr)
	str("REDIS_PASSWORD", &c.Store.Redis.Password)
	str("REDIS_PREFIX", &c.Store.Redis.Prefix)
	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err))
		} else {
			c.Store.Redis.DB = db
		}
	}
	str("REPLICATION", &c.Replication.Backend)
	str("NATS_URL", &c.Replication.NATSURL)
	str("LOCK", &c.Lock.Backend)
	duration("LOCK_TTL", &c.Lock.TTL)
	str("ENCRYPTION_KEY", &c.Security.EncryptionKey)
	boolean("MASK_PII", &c.Security.MaskPII)
	boolean("STRICT_STEP_ORDER", &c.Lifecycle.StrictStepOrder)
	str("ADDR", &c.Server.Addr)
	str("SOLVER_URL", &c.Solver.BaseURL)
	duration("SOLVER_TIMEOUT", &c.Solver.Timeout)
	str("STRATEGY", &c.Simulate.Strategy)
	duration("DELAY", &c.Simulate.Delay)
	str("USER", &c.Simulate.User)

	return errors.Join(errs...)
}

// Validate checks backend names, backend prerequisites and keys.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Store.Dir == "" {
			bad("store.dir is required for the file store")
		}
	default:
		bad("unknown store backend %q", c.Store.Backend)
	}

	switch c.Replication.Backend {
	case BackendNone, "", BackendMemory:
	case BackendFile:
		if c.Store.Backend != BackendFile {
			bad("file replication watches the file store directory; store.backend must be file")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			bad("redis replication needs store.redis.addr")
		}
	case BackendNATS:
		if c.Replication.NATSURL == "" {
			bad("nats replication needs replication.nats_url")
		}
	default:
		bad("unknown replication backend %q", c.Replication.Backend)
	}

	switch c.Lock.Backend {
	case BackendNone, "", BackendMemory, BackendRedis:
	default:
		bad("unknown lock backend %q", c.Lock.Backend)
	}

	// Masked slots are lossy: a replica that reads state back from the store
	// would adopt the placeholders as live values.
	if c.Security.MaskPII {
		if c.Replication.Backend == BackendFile {
			bad("security.mask_pii cannot be combined with file replication")
		}
		switch c.Lock.Backend {
		case BackendNone, "":
		default:
			bad("security.mask_pii cannot be combined with a distributed lock")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		bad("%v", err)
	}
	if _, err := auction.ParseStrategy(c.Simulate.Strategy); err != nil {
		bad("%v", err)
	}
	if _, _, err := c.Security.Keys(); err != nil {
		bad("%v", err)
	}
	return errors.Join(errs...)
}

// Keys decodes the active and fallback encryption keys. A nil active key
// means encryption is off.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("fallback keys without an active encryption key")
		}
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	for i, raw := range s.FallbackKeys {
		k, err := decodeKey(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}

func decodeKey(raw string) ([]byte, error) {
	var (
		key []byte
		err error
	)
	if strings.HasPrefix(raw, "0x") {
		key, err = hexutil.Decode(raw)
	} else {
		key, err = base64.StdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
