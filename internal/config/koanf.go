// Package config provides internal configuration loading and processing.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/smykla-skalski/telegate/pkg/config"
)

var (
	// ErrInvalidTOML is returned when the TOML file cannot be parsed.
	ErrInvalidTOML = errors.New("invalid TOML")

	// ErrInvalidPermissions is returned when config file has insecure permissions.
	ErrInvalidPermissions = errors.New("config file has insecure permissions")
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "TELEGATE_"

	// GlobalConfigFile is the name of the global configuration file.
	GlobalConfigFile = "config.toml"

	// GlobalConfigDir is the directory name for global configuration.
	GlobalConfigDir = ".telegate"

	// ProjectConfigDir is the directory name for project configuration.
	ProjectConfigDir = ".telegate"

	// ProjectConfigFile is the primary project configuration file name.
	ProjectConfigFile = "config.toml"

	// ProjectConfigFileAlt is the alternative project configuration file name.
	ProjectConfigFileAlt = "telegate.toml"
)

// KoanfLoader handles configuration loading from multiple sources using koanf.
// Precedence order (highest to lowest):
// 1. CLI Flags
// 2. Environment Variables (TELEGATE_*)
// 3. Project Config (.telegate/config.toml or telegate.toml)
// 4. Global Config (~/.telegate/config.toml)
// 5. Defaults
type KoanfLoader struct {
	k        *koanf.Koanf
	homeDir  string
	workDir  string
	tomlOpts koanf.UnmarshalConf
}

// NewKoanfLoader creates a new KoanfLoader with default directories.
func NewKoanfLoader() (*KoanfLoader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get working directory")
	}

	return NewKoanfLoaderWithDirs(homeDir, workDir)
}

// NewKoanfLoaderWithDirs creates a new KoanfLoader with custom directories (for testing).
func NewKoanfLoaderWithDirs(homeDir, workDir string) (*KoanfLoader, error) {
	k := koanf.New(".")

	return &KoanfLoader{
		k:       k,
		homeDir: homeDir,
		workDir: workDir,
		tomlOpts: koanf.UnmarshalConf{
			Tag:       "koanf",
			FlatPaths: false,
		},
	}, nil
}

// Load loads configuration from all sources with precedence.
// Defaults → Global TOML → Project TOML → Env Vars → CLI Flags
func (l *KoanfLoader) Load(flags map[string]any) (*config.Config, error) {
	cfg, err := l.LoadWithoutValidation(flags)
	if err != nil {
		return nil, err
	}

	validator := NewValidator()
	if err := validator.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// LoadWithoutValidation loads configuration without running validation.
// This is useful for tools that need to fix invalid configurations.
func (l *KoanfLoader) LoadWithoutValidation(flags map[string]any) (*config.Config, error) {
	// Reset koanf instance for fresh load
	l.k = koanf.New(".")

	// 1. Load defaults first (lowest priority)
	if err := l.k.Load(confmap.Provider(defaultsToMap(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	// 2. Global config: ~/.telegate/config.toml
	globalPath := l.GlobalConfigPath()
	if err := l.loadTOMLFile(globalPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load global config")
	}

	// 3. Project config: .telegate/config.toml or telegate.toml
	projectPath := l.findProjectConfig()
	if projectPath != "" {
		if err := l.loadTOMLFile(projectPath); err != nil {
			return nil, errors.Wrap(err, "failed to load project config")
		}
	}

	// 4. Environment variables: TELEGATE_*
	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: l.envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	// 5. CLI flags (highest priority)
	if len(flags) > 0 {
		if err := l.k.Load(confmap.Provider(flagsToConfig(flags), "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg config.Config
	if err := l.k.UnmarshalWithConf("", &cfg, l.tomlOpts); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// loadTOMLFile loads a TOML configuration file with security checks.
func (l *KoanfLoader) loadTOMLFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	// Reject world-writable files; the bot token lives here.
	if info.Mode().Perm()&0o002 != 0 {
		return errors.Wrapf(
			ErrInvalidPermissions,
			"%s is world-writable (mode: %s)",
			path,
			info.Mode().Perm(),
		)
	}

	if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
		return errors.Wrapf(ErrInvalidTOML, "%s: %v", path, err)
	}

	return nil
}

// envTransform transforms environment variable names to config paths.
// TELEGATE_TELEGRAM_BOT_TOKEN → telegram.bot_token
func (*KoanfLoader) envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)

	// Section and field are separated by the first underscore; field
	// names keep theirs (bot_token, timeout_action, min_delay).
	section, field, found := strings.Cut(key, "_")
	if !found {
		return key, value
	}

	return section + "." + field, value
}

// GlobalConfigPath returns the path to the global configuration file.
func (l *KoanfLoader) GlobalConfigPath() string {
	return filepath.Join(l.homeDir, GlobalConfigDir, GlobalConfigFile)
}

// ProjectConfigPaths returns the paths to check for project configuration.
func (l *KoanfLoader) ProjectConfigPaths() []string {
	return []string{
		filepath.Join(l.workDir, ProjectConfigDir, ProjectConfigFile),
		filepath.Join(l.workDir, ProjectConfigFileAlt),
	}
}

// findProjectConfig checks for project config files and returns the first found.
func (l *KoanfLoader) findProjectConfig() string {
	for _, path := range l.ProjectConfigPaths() {
		if fileExists(path) {
			return path
		}
	}

	return ""
}

// HasGlobalConfig checks if a global configuration file exists.
func (l *KoanfLoader) HasGlobalConfig() bool {
	return fileExists(l.GlobalConfigPath())
}

// HasProjectConfig checks if a project configuration file exists.
func (l *KoanfLoader) HasProjectConfig() bool {
	return l.findProjectConfig() != ""
}

// flagsToConfig converts CLI flags to a configuration map.
func flagsToConfig(flags map[string]any) map[string]any {
	result := make(map[string]any)

	for key, value := range flags {
		switch key {
		case "bot-token":
			ensureMapKey(result, "telegram")["bot_token"] = value
		case "chat-id":
			ensureMapKey(result, "telegram")["chat_id"] = value
		case "timeout":
			ensureMapKey(result, "approval")["timeout"] = value
		case "timeout-action":
			ensureMapKey(result, "approval")["timeout_action"] = value
		case "log-level":
			ensureMapKey(result, "logging")["level"] = value
		case "log-file":
			ensureMapKey(result, "logging")["file"] = value
		}
	}

	return result
}

// ensureMapKey returns the nested map at key, creating it if needed.
func ensureMapKey(m map[string]any, key string) map[string]any {
	if nested, ok := m[key].(map[string]any); ok {
		return nested
	}

	nested := make(map[string]any)
	m[key] = nested

	return nested
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
