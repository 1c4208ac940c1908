package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agrimarket/agrimarket-ui/internal/cryptoutil"
)

// StoreKind selects where the credential pair is persisted.
type StoreKind string

const (
	// StoreKindFile keeps credentials in a JSON file under the user config directory.
	StoreKindFile StoreKind = "file"
	// StoreKindRedis keeps credentials in Redis, shared between shell instances.
	StoreKindRedis StoreKind = "redis"
	// StoreKindMemory keeps credentials for the lifetime of the process.
	StoreKindMemory StoreKind = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreKind.
func (k *StoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "redis", "memory":
		*k = StoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreKind: %q (valid options: file, redis, memory)", v)
	}
}

// StoreConfig contains credential store configuration.
type StoreConfig struct {
	Kind StoreKind `env:"CREDENTIAL_STORE" envDefault:"file"`

	// Path is the directory for the file store. Empty uses the user config directory.
	Path string `env:"CREDENTIAL_STORE_PATH"`

	// Scope separates credentials of several installations sharing a directory or Redis.
	Scope string `env:"CREDENTIAL_STORE_SCOPE" envDefault:"default"`

	// Key seals stored tokens with AES-256-GCM when set (32 bytes, hex or base64).
	// Ignored by the memory store.
	Key string `env:"CREDENTIAL_STORE_KEY"`

	Redis RedisConfig `envPrefix:"REDIS_"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"agrimarket:credentials:"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// Sanitize trims values and drops empty node entries.
func (c *StoreConfig) Sanitize() {
	if c.Kind == "" {
		c.Kind = StoreKindFile
	}
	c.Path = strings.TrimSpace(c.Path)
	c.Key = strings.TrimSpace(c.Key)
	if c.Scope = strings.TrimSpace(c.Scope); c.Scope == "" {
		c.Scope = "default"
	}
	c.Redis.URI = strings.TrimSpace(c.Redis.URI)
	c.Redis.SentinelNodes = compact(c.Redis.SentinelNodes)
	c.Redis.ClusterNodes = compact(c.Redis.ClusterNodes)
}

// Validate checks that the selected store can be built.
func (c *StoreConfig) Validate() error {
	if c.Key != "" && c.Kind != StoreKindMemory {
		if _, err := cryptoutil.ParseKey(c.Key); err != nil {
			return fmt.Errorf("invalid CREDENTIAL_STORE_KEY: %w", err)
		}
	}
	if c.Kind != StoreKindRedis {
		return nil
	}
	switch {
	case c.Redis.UseCluster && c.Redis.UseSentinel:
		return errors.New("REDIS_USE_CLUSTER and REDIS_USE_SENTINEL are mutually exclusive")
	case c.Redis.UseCluster && len(c.Redis.ClusterNodes) == 0:
		return errors.New("REDIS_CLUSTER_NODES is required when REDIS_USE_CLUSTER=true")
	case c.Redis.UseSentinel && len(c.Redis.SentinelNodes) == 0:
		return errors.New("REDIS_SENTINEL_NODES is required when REDIS_USE_SENTINEL=true")
	case !c.Redis.UseCluster && !c.Redis.UseSentinel && c.Redis.URI == "":
		return errors.New("REDIS_URI is required when CREDENTIAL_STORE=redis")
	}
	return nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
