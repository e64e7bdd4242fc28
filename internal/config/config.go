// Package config holds the application configuration and paths.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mateconpizza/hsearch/internal/sys/files"
)

// version of the application.
var version = "0.1.4"

const (
	appName        string = "hsearch"        // Default name of the application
	command        string = "hsearch"        // Default name of the executable
	MainDBName     string = "history.db"     // Default name of the cache database
	configFilename string = "config.yml"     // Default config filename
)

type (
	AppConfig struct {
		Name    string   `yaml:"-"`     // Name of the application
		Cmd     string   `yaml:"-"`     // Name of the executable
		DBName  string   `yaml:"db"`    // Cache database name
		Path    path     `yaml:"-"`     // Application paths
		Flags   *Flags   `yaml:"-"`     // Command line flags
		Fetch   fetchCfg `yaml:"fetch"` // Favicon fetch tuning
	}

	path struct {
		Data       string // Path to store the cache database
		ConfigFile string // Path to config file
	}

	// Flags are set from the command line.
	Flags struct {
		Browser   string // Restrict operations to a single browser
		JSON      bool   // Output in JSON format
		Verbose   int    // Logging verbosity, repeatable
		NoNetwork bool   // Skip favicon enrichment
	}

	fetchCfg struct {
		IconSize int `yaml:"icon_size"` // Requested favicon size in px
	}
)

// App is the default application configuration.
var App = &AppConfig{
	Name:   appName,
	Cmd:    command,
	DBName: MainDBName,
	Flags:  &Flags{},
	Fetch:  fetchCfg{IconSize: 64},
}

// DBPath returns the full path to the cache database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.Path.Data, files.EnsureExt(c.DBName, ".db"))
}

// Load resolves the application paths and reads the optional config file.
func Load() error {
	dataDir, err := DataPath()
	if err != nil {
		return err
	}
	configDir, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := files.MkdirAll(dataDir, configDir); err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	App.Path.Data = dataDir
	App.Path.ConfigFile = filepath.Join(configDir, configFilename)

	return loadConfigFile(App.Path.ConfigFile)
}

// loadConfigFile merges the optional YAML config file into App. A missing
// file is not an error.
func loadConfigFile(p string) error {
	if !files.Exists(p) {
		slog.Debug("no config file", "path", p)
		return nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, App); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	slog.Debug("config file loaded", "path", p)

	return nil
}

// Version returns the application version.
func Version() string {
	return version
}

// SetVerbosity installs the default logger at the level selected by the
// repeatable verbose flag: error, warn, info, debug.
func SetVerbosity(verbose int) {
	levels := []slog.Level{
		slog.LevelError,
		slog.LevelWarn,
		slog.LevelInfo,
		slog.LevelDebug,
	}
	level := levels[min(verbose, len(levels)-1)]

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == "source" {
					if source, ok := a.Value.Any().(*slog.Source); ok {
						dir, file := filepath.Split(source.File)
						source.File = filepath.Join(filepath.Base(filepath.Clean(dir)), file)

						return slog.Attr{Key: "source", Value: slog.AnyValue(source)}
					}
				}

				return a
			},
		}),
	)
	slog.SetDefault(logger)

	slog.Debug("logging", "level", level)
}
