// Package config handles configuration loading for hive.
// It supports an XDG user config, a per-repository override in
// .hive/config.yaml and HIVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

// DefaultHiveDir is the state directory relative to the repository root.
const DefaultHiveDir = ".hive"

// ProjectConfigFile is the per-repository config file inside the hive directory.
const ProjectConfigFile = "config.yaml"

// Config holds all configuration for hive.
type Config struct {
	// Root is the repository root the config was loaded for. Not read from files.
	Root string `mapstructure:"-" yaml:"-"`

	HiveDir      string           `mapstructure:"hive_dir" yaml:"hive_dir"`
	BaseBranch   string           `mapstructure:"base_branch" yaml:"base_branch"`
	BranchPrefix string           `mapstructure:"branch_prefix" yaml:"branch_prefix"`
	Store        StoreConfig      `mapstructure:"store" yaml:"store"`
	Agents       AgentsConfig     `mapstructure:"agents" yaml:"agents"`
	Supervisor   SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Merge        MergeConfig      `mapstructure:"merge" yaml:"merge"`
	PR           PRConfig         `mapstructure:"pr" yaml:"pr"`
	Log          LogConfig        `mapstructure:"log" yaml:"log"`
	Server       ServerConfig     `mapstructure:"server" yaml:"server"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// AgentsConfig holds the named planner and executor templates.
type AgentsConfig struct {
	Planners        map[string]models.AgentTemplate `mapstructure:"planners" yaml:"planners"`
	Executors       map[string]models.AgentTemplate `mapstructure:"executors" yaml:"executors"`
	DefaultPlanner  string                          `mapstructure:"default_planner" yaml:"default_planner"`
	DefaultExecutor string                          `mapstructure:"default_executor" yaml:"default_executor"`
}

// SupervisorConfig bounds and tunes agent processes.
type SupervisorConfig struct {
	// MaxConcurrent limits running agents across all tasks; 0 is unlimited.
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	GracePeriod   time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	TailLines     int           `mapstructure:"tail_lines" yaml:"tail_lines"`
}

// MergeConfig holds merge behaviour.
type MergeConfig struct {
	AutoCommit bool `mapstructure:"auto_commit" yaml:"auto_commit"`
}

// PRConfig holds pull request settings.
type PRConfig struct {
	Remote  string   `mapstructure:"remote" yaml:"remote"`
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// CompletesTask moves a task to done once its pull request exists.
	CompletesTask bool `mapstructure:"completes_task" yaml:"completes_task"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Load loads configuration for the repository at root.
// Precedence (highest to lowest):
// 1. Environment variables (HIVE_SUPERVISOR_MAX_CONCURRENT, ...)
// 2. Project config (<root>/.hive/config.yaml)
// 3. User config (~/.config/hive/config.yaml)
// 4. Built-in defaults
func Load(root string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &apperr.ConfigError{Msg: "reading user config", Err: err}
		}
	}

	projectConfig := ProjectConfigPath(root)
	if _, err := os.Stat(projectConfig); err == nil {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, &apperr.ConfigError{Msg: "reading project config " + projectConfig, Err: err}
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, &apperr.ConfigError{Msg: "merging project config", Err: err}
		}
	}

	return finish(v, root)
}

// LoadFromPath loads configuration from a single file (for testing).
// Environment overrides still apply.
func LoadFromPath(path, root string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &apperr.ConfigError{Msg: "reading config from " + path, Err: err}
	}
	return finish(v, root)
}

// Default returns a Config with default values for root.
func Default(root string) *Config {
	cfg, err := finish(newViper(), root)
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper, root string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &apperr.ConfigError{Msg: "unmarshaling config", Err: err}
	}
	cfg.Root = root
	cfg.resolvePaths()
	upperEnv(cfg.Agents.Planners)
	upperEnv(cfg.Agents.Executors)
	return cfg, nil
}

// upperEnv restores environment variable names that viper lower-cased.
func upperEnv(templates map[string]models.AgentTemplate) {
	for name, tmpl := range templates {
		if len(tmpl.Env) == 0 {
			continue
		}
		env := make(map[string]string, len(tmpl.Env))
		for k, v := range tmpl.Env {
			env[strings.ToUpper(k)] = v
		}
		tmpl.Env = env
		templates[name] = tmpl
	}
}

// resolvePaths makes hive_dir and log.file absolute.
func (c *Config) resolvePaths() {
	if c.HiveDir == "" {
		c.HiveDir = DefaultHiveDir
	}
	c.HiveDir = os.ExpandEnv(c.HiveDir)
	if !filepath.IsAbs(c.HiveDir) && c.Root != "" {
		c.HiveDir = filepath.Join(c.Root, c.HiveDir)
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.LogDir(), "hive.log")
	} else if !filepath.IsAbs(c.Log.File) {
		c.Log.File = filepath.Join(c.HiveDir, c.Log.File)
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hive_dir", DefaultHiveDir)
	v.SetDefault("base_branch", "")
	v.SetDefault("branch_prefix", "hive")

	v.SetDefault("store.backend", "file")

	v.SetDefault("agents.planners", map[string]any{
		"gemini": map[string]any{
			"command":     "gemini",
			"args":        []string{"-y", "{{prompt}}"},
			"description": "Fast and cheap. Best for general tasks",
		},
		"codex": map[string]any{
			"command":     "codex",
			"args":        []string{"exec", "{{prompt}}"},
			"description": "Strong reasoning. For complex architecture design",
		},
		"claude": map[string]any{
			"command":     "claude",
			"args":        []string{"-p", "--permission-mode", "plan", "{{prompt}}"},
			"description": "Careful planning with repository context",
		},
	})
	v.SetDefault("agents.executors", map[string]any{
		"claude": map[string]any{
			"command":     "claude",
			"args":        []string{"-p", "--dangerously-skip-permissions", "{{prompt}}"},
			"description": "High code quality. Best for implementation",
		},
	})
	v.SetDefault("agents.default_planner", "gemini")
	v.SetDefault("agents.default_executor", "claude")

	v.SetDefault("supervisor.max_concurrent", 0)
	v.SetDefault("supervisor.grace_period", "5s")
	v.SetDefault("supervisor.flush_interval", "500ms")
	v.SetDefault("supervisor.tail_lines", 20)

	v.SetDefault("merge.auto_commit", true)

	v.SetDefault("pr.remote", "origin")
	v.SetDefault("pr.command", "gh")
	v.SetDefault("pr.args", []string{
		"pr", "create",
		"--title", "{{title}}",
		"--body", "{{description}}",
		"--head", "{{branch}}",
		"--base", "{{base_branch}}",
	})
	v.SetDefault("pr.completes_task", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("server.addr", "127.0.0.1:7420")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Agents.Planners) == 0 {
		return &apperr.ConfigError{Key: "agents.planners", Msg: "no planner templates configured"}
	}
	if len(c.Agents.Executors) == 0 {
		return &apperr.ConfigError{Key: "agents.executors", Msg: "no executor templates configured"}
	}
	if _, ok := c.Agents.Planners[c.Agents.DefaultPlanner]; !ok {
		return &apperr.ConfigError{
			Key: "agents.default_planner",
			Msg: fmt.Sprintf("unknown planner %q (have %s)", c.Agents.DefaultPlanner, strings.Join(c.PlannerNames(), ", ")),
		}
	}
	if _, ok := c.Agents.Executors[c.Agents.DefaultExecutor]; !ok {
		return &apperr.ConfigError{
			Key: "agents.default_executor",
			Msg: fmt.Sprintf("unknown executor %q (have %s)", c.Agents.DefaultExecutor, strings.Join(c.ExecutorNames(), ", ")),
		}
	}
	for name, tmpl := range c.Agents.Planners {
		if tmpl.Command == "" {
			return &apperr.ConfigError{Key: "agents.planners." + name + ".command", Msg: "command is empty"}
		}
	}
	for name, tmpl := range c.Agents.Executors {
		if tmpl.Command == "" {
			return &apperr.ConfigError{Key: "agents.executors." + name + ".command", Msg: "command is empty"}
		}
	}
	if c.Supervisor.MaxConcurrent < 0 {
		return &apperr.ConfigError{Key: "supervisor.max_concurrent", Msg: "must not be negative"}
	}
	if c.Supervisor.GracePeriod < 0 {
		return &apperr.ConfigError{Key: "supervisor.grace_period", Msg: "must not be negative"}
	}
	if c.Supervisor.TailLines < 0 {
		return &apperr.ConfigError{Key: "supervisor.tail_lines", Msg: "must not be negative"}
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return &apperr.ConfigError{Key: "store.backend", Msg: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	if strings.ContainsAny(c.BranchPrefix, " ~^:?*[\\") {
		return &apperr.ConfigError{Key: "branch_prefix", Msg: fmt.Sprintf("%q is not a valid branch component", c.BranchPrefix)}
	}
	return nil
}

// Template returns the named template for role. An empty name selects the
// role's default.
func (c *Config) Template(role models.Role, name string) (string, models.AgentTemplate, error) {
	var templates map[string]models.AgentTemplate
	var key, def string
	switch role {
	case models.RolePlanner:
		templates, key, def = c.Agents.Planners, "agents.planners", c.Agents.DefaultPlanner
	case models.RoleExecutor:
		templates, key, def = c.Agents.Executors, "agents.executors", c.Agents.DefaultExecutor
	default:
		return "", models.AgentTemplate{}, &apperr.ConfigError{Key: "agents", Msg: fmt.Sprintf("unknown role %q", role)}
	}
	if name == "" {
		name = def
	}
	// viper lower-cases map keys.
	name = strings.ToLower(name)
	tmpl, ok := templates[name]
	if !ok {
		return "", models.AgentTemplate{}, &apperr.ConfigError{Key: key + "." + name, Msg: "no such agent template"}
	}
	return name, tmpl, nil
}

// PlannerNames returns the configured planner names, sorted.
func (c *Config) PlannerNames() []string { return sortedKeys(c.Agents.Planners) }

// ExecutorNames returns the configured executor names, sorted.
func (c *Config) ExecutorNames() []string { return sortedKeys(c.Agents.Executors) }

// PlansDir is where plan artifacts are written.
func (c *Config) PlansDir() string { return filepath.Join(c.HiveDir, "plans") }

// WorktreesDir is where task worktrees are created.
func (c *Config) WorktreesDir() string { return filepath.Join(c.HiveDir, "worktrees") }

// LogDir holds agent run logs and the hive log.
func (c *Config) LogDir() string { return filepath.Join(c.HiveDir, "logs") }

// HiveExclude is the exclude pattern for the hive directory when it lives
// inside the repository, or "" when it does not.
func (c *Config) HiveExclude() string {
	if c.Root == "" {
		return ""
	}
	rel, err := filepath.Rel(c.Root, c.HiveDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel) + "/"
}

// ProjectConfigPath returns the project config file for root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, DefaultHiveDir, ProjectConfigFile)
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// getUserConfigDir returns the XDG config directory for hive.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hive")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hive")
	}
	return filepath.Join(home, ".config", "hive")
}

func sortedKeys(m map[string]models.AgentTemplate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
