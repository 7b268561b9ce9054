// Package config loads the orchestrator's YAML configuration (spec §6):
// containers, socks proxies, profiles, prompts, and the container IO log,
// with CONFIG_PATH/SQLITE_PATH/ORCH_* environment overrides (env beats YAML).
// Grounded on the teacher's internal/config/config.go (viper-backed struct
// population) generalized to the nested-struct + ReadInConfig pattern used
// for YAML-file configs elsewhere in the retrieved corpus.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Timeouts mirrors containers[].timeouts in the YAML schema.
type Timeouts struct {
	ConnectSeconds int `mapstructure:"connect_seconds"`
	ReadSeconds    int `mapstructure:"read_seconds"`
}

// Container is one containers[] entry.
type Container struct {
	ID             string   `mapstructure:"id"`
	BaseURL        string   `mapstructure:"base_url"`
	Enabled        bool     `mapstructure:"enabled"`
	Weight         int      `mapstructure:"weight"`
	Timeouts       Timeouts `mapstructure:"timeouts"`
	AnalyzeRetries int      `mapstructure:"analyze_retries"`
}

// Socks is one socks[] entry.
type Socks struct {
	SocksID string `mapstructure:"socks_id"`
	URL     string `mapstructure:"url"`
}

// Profile is one profiles[] entry.
type Profile struct {
	ProfileID         string   `mapstructure:"profile_id"`
	ProfileValue      string   `mapstructure:"profile_value"`
	SocksID           string   `mapstructure:"socks_id"`
	AllowedContainers []string `mapstructure:"allowed_containers"`
	MaxUses           *int     `mapstructure:"max_uses"`
	PendingReplace    bool     `mapstructure:"pending_replace"`
}

// Prompt is one prompts[] entry.
type Prompt struct {
	PromptID           string `mapstructure:"prompt_id"`
	File               string `mapstructure:"file"`
	DefaultMaxChatUses int    `mapstructure:"default_max_chat_uses"`
}

// ContainerIOLog mirrors container_io_log in the YAML schema.
type ContainerIOLog struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir"`
	MaxBytes      int64  `mapstructure:"max_bytes"`
	BackupCount   int    `mapstructure:"backup_count"`
	IncludeBodies bool   `mapstructure:"include_bodies"`
	RedactSecrets bool   `mapstructure:"redact_secrets"`
	MaxFieldChars int    `mapstructure:"max_field_chars"`
	Level         string `mapstructure:"level"`
}

// Config is the fully resolved orchestrator configuration.
type Config struct {
	Containers         []Container    `mapstructure:"containers"`
	Socks              []Socks        `mapstructure:"socks"`
	Profiles           []Profile      `mapstructure:"profiles"`
	Prompts            []Prompt       `mapstructure:"prompts"`
	AllowSocksOverride bool           `mapstructure:"allow_socks_override"`
	ContainerIOLog     ContainerIOLog `mapstructure:"container_io_log"`

	// Dir is the directory CONFIG_PATH lives in; relative file paths in the
	// config (e.g. prompts[].file) resolve against it.
	Dir string

	// SQLitePath is the resolved path to the SQLite database file.
	SQLitePath string

	// LogLevel is ORCH_LOG_LEVEL, defaulting to "info".
	LogLevel string
}

// Load reads the YAML file at configPath, applies ORCH_*/CONFIG_PATH/
// SQLITE_PATH environment overrides, and returns the resolved Config.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config: CONFIG_PATH is required")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("allow_socks_override", false)
	v.SetDefault("container_io_log.enabled", false)
	v.SetDefault("container_io_log.max_bytes", 10*1024*1024)
	v.SetDefault("container_io_log.backup_count", 3)
	v.SetDefault("container_io_log.max_field_chars", 256)
	v.SetDefault("container_io_log.redact_secrets", true)
	v.SetDefault("container_io_log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", configPath, err)
	}

	v.SetEnvPrefix("ORCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindIOLogEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", configPath, err)
	}

	cfg.Dir = filepath.Dir(configPath)
	cfg.LogLevel = v.GetString("log_level")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.SQLitePath = v.GetString("sqlite_path")
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.Dir, "solveorch.db")
	}

	resolvePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindIOLogEnv wires ORCH_CONTAINER_IO_LOG_* to each container_io_log field
// individually, since viper's AutomaticEnv alone won't reach nested struct
// keys through mapstructure tags that differ from the flattened env name.
func bindIOLogEnv(v *viper.Viper) {
	fields := []string{
		"enabled", "dir", "max_bytes", "backup_count",
		"include_bodies", "redact_secrets", "max_field_chars", "level",
	}
	for _, f := range fields {
		key := "container_io_log." + f
		env := "ORCH_CONTAINER_IO_LOG_" + strings.ToUpper(f)
		_ = v.BindEnv(key, env)
	}
	_ = v.BindEnv("log_level", "ORCH_LOG_LEVEL")
	_ = v.BindEnv("sqlite_path", "SQLITE_PATH")
}

// resolvePaths joins relative paths (prompts[].file, container_io_log.dir)
// against the config directory, per spec §6.
func resolvePaths(cfg *Config) {
	if cfg.ContainerIOLog.Dir != "" && !filepath.IsAbs(cfg.ContainerIOLog.Dir) {
		cfg.ContainerIOLog.Dir = filepath.Join(cfg.Dir, cfg.ContainerIOLog.Dir)
	}
	for i, p := range cfg.Prompts {
		if p.File != "" && !filepath.IsAbs(p.File) {
			cfg.Prompts[i].File = filepath.Join(cfg.Dir, p.File)
		}
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Containers))
	for _, c := range cfg.Containers {
		if c.ID == "" {
			return fmt.Errorf("config: container entry missing id")
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("config: duplicate container id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.BaseURL == "" {
			return fmt.Errorf("config: container %q missing base_url", c.ID)
		}
	}
	return nil
}
