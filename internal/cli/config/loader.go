package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/ncl-analytics/sqlbuild/internal/executor"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

const envPrefix = "SQLBUILD_"

var configNames = []string{"sqlbuild.yaml", "sqlbuild.yml"}

// flagKeys maps persistent flag names to config keys. Flags not listed
// (config, target) are consumed directly by the loader.
var flagKeys = map[string]string{
	"project-dir": "project_dir",
	"state":       "state_path",
	"log-dir":     "log_dir",
	"verbose":     "verbose",
	"output":      "output",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load reads configuration from file, environment variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// target selects an entry of environments; empty uses the configured
// environment, if any.
func Load(cfgFile, target string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// Flag paths are relative to the working directory, not the project.
	flagPaths := map[string]string{}
	if flags != nil {
		for _, name := range []string{"project-dir", "state", "log-dir"} {
			if !flags.Changed(name) {
				continue
			}
			if v, _ := flags.GetString(name); v != "" && v != ":memory:" {
				if abs, err := filepath.Abs(v); err == nil {
					flagPaths[name] = abs
					continue
				}
			}
			v, _ := flags.GetString(name)
			flagPaths[name] = v
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"project_dir":         DefaultProjectDir,
		"exclude_dirs":        []string{".git"},
		"state_path":          DefaultStateFile,
		"log_dir":             DefaultLogDir,
		"verbose":             false,
		"output":              DefaultOutput,
		"executor.type":       executor.DefaultType,
		"executor.connection": executor.DefaultConnection,
		"executor.snow_path":  executor.DefaultSnowPath,
		"executor.temp_dir":   executor.DefaultTempDir,
		"executor.timeout":    "0s",
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit, then next to --project-dir, then upward from cwd
	configFile := cfgFile
	if configFile == "" {
		if dir, ok := flagPaths["project-dir"]; ok {
			configFile = configExistsIn(dir)
		}
	}
	if configFile == "" {
		configFile = findConfigUpward(cwd)
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment: SQLBUILD_STATE_PATH -> state_path, SQLBUILD_EXECUTOR__TYPE -> executor.type
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !f.Changed || !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths. Config-file paths are relative to the file's directory.
	base := cwd
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			base = filepath.Dir(abs)
		}
	}
	cfg.ProjectRoot = base
	cfg.File = configFile
	cfg.ProjectDir = pick(flagPaths["project-dir"], resolvePathRelativeTo(cfg.ProjectDir, base))
	cfg.StatePath = pick(flagPaths["state"], resolvePathRelativeTo(cfg.StatePath, base))
	cfg.LogDir = pick(flagPaths["log-dir"], resolvePathRelativeTo(cfg.LogDir, base))

	// 7. Environment overrides
	selected := cfg.Environment
	if target != "" {
		selected = target
	}
	if selected != "" {
		envCfg, ok := cfg.Environments[selected]
		if !ok {
			if target != "" {
				return nil, "", fmt.Errorf("unknown target %q (define it under environments in %s)", target, DefaultConfigName)
			}
		} else if envCfg.Executor != nil {
			cfg.Executor = MergeExecutorConfig(cfg.Executor, *envCfg.Executor)
		}
		if ok {
			cfg.Target = selected
		}
	}

	cfg.Executor.DSN = expandEnvVars(cfg.Executor.DSN)
	cfg.Executor.Connection = expandEnvVars(cfg.Executor.Connection)
	cfg.Executor.TempDir = resolvePathRelativeTo(cfg.Executor.TempDir, base)

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, configFile, nil
}

// Validate checks the decoded configuration.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q (want auto|text|markdown|json|yaml)", c.OutputFormat)
	}
	if c.Executor.Timeout < 0 {
		return fmt.Errorf("executor timeout must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

func pick(flagValue, resolved string) string {
	if flagValue != "" {
		return flagValue
	}
	return resolved
}

// MergeExecutorConfig returns base with every non-zero field of override applied.
func MergeExecutorConfig(base, override ExecutorConfig) ExecutorConfig {
	if override.Type != "" {
		base.Type = override.Type
	}
	if override.Connection != "" {
		base.Connection = override.Connection
	}
	if override.DSN != "" {
		base.DSN = override.DSN
	}
	if override.SnowPath != "" {
		base.SnowPath = override.SnowPath
	}
	if override.TempDir != "" {
		base.TempDir = override.TempDir
	}
	if override.Timeout != 0 {
		base.Timeout = override.Timeout
	}
	return base
}

// expandEnvVars expands ${VAR} patterns. Unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
