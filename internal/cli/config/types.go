// Package config loads sqlbuild configuration.
//
// Values are layered: built-in defaults, then sqlbuild.yaml, then SQLBUILD_
// environment variables, then explicitly set command-line flags. A selected
// environment (--target) overrides the executor section.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	ProjectDir   string               `koanf:"project_dir"`
	ExcludeDirs  []string             `koanf:"exclude_dirs"`
	StatePath    string               `koanf:"state_path"`
	LogDir       string               `koanf:"log_dir"`
	Environment  string               `koanf:"environment"`
	Workers      int                  `koanf:"workers"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Executor     ExecutorConfig       `koanf:"executor"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// Target is the environment that was applied, if any.
	Target string `koanf:"-"`
	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// ExecutorConfig selects and configures the SQL executor.
type ExecutorConfig struct {
	Type       string        `koanf:"type"`
	Connection string        `koanf:"connection"`
	DSN        string        `koanf:"dsn"`
	SnowPath   string        `koanf:"snow_path"`
	TempDir    string        `koanf:"temp_dir"`
	Timeout    time.Duration `koanf:"timeout"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	Executor *ExecutorConfig `koanf:"executor"`
}

// Default configuration values.
const (
	DefaultProjectDir = "."
	DefaultStateFile  = ".sqlbuild/state.db"
	DefaultLogDir     = "logs"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
	DefaultConfigName = "sqlbuild.yaml"
)
