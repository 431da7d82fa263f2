// Package config manages YAML-based configuration and CLI flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/archive"
	"github.com/CageChen/cratedeck/internal/fetch"
)

// Render surfaces.
const (
	ModeTerminal = "terminal"
	ModeWeb      = "web"
)

// Export configures where and how 'e' writes archives.
type Export struct {
	// Dir is used by the terminal surface. The web surface downloads through the browser.
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
	Name   string `yaml:"name"`
}

// Fetch configures the text loaded by 'l'.
type Fetch struct {
	Resource   string `yaml:"resource"`
	FoldErrors bool   `yaml:"fold_errors"`
}

// Config holds all configuration options for cratedeck
type Config struct {
	Mode       string   `yaml:"mode"`
	Port       int      `yaml:"port"`
	Open       bool     `yaml:"open"`
	Source     string   `yaml:"source"`
	GitRef     string   `yaml:"git_ref,omitempty"`
	Exclude    []string `yaml:"exclude"`
	Watch      bool     `yaml:"watch"`
	PickPolicy string   `yaml:"pick_policy"`
	Highlight  bool     `yaml:"highlight"`
	LogFile    string   `yaml:"log_file"`
	Export     Export   `yaml:"export"`
	Fetch      Fetch    `yaml:"fetch"`

	// Internal: path to config file for saving
	configPath string
	saveConfig bool
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeTerminal,
		Port:       8080,
		Source:     ".",
		Exclude:    []string{".git", "target", "node_modules"},
		Watch:      true,
		PickPolicy: string(app.PickLastWriteWins),
		Highlight:  true,
		LogFile:    "cratedeck.log",
		Export: Export{
			Dir:    ".",
			Format: string(archive.FormatZip),
			Name:   "crate",
		},
		Fetch: Fetch{Resource: fetch.DefaultResource},
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cratedeck"
	}
	return filepath.Join(home, ".config", "cratedeck")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from file and the process command line.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs loads configuration from file and the given command line arguments.
func LoadArgs(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("cratedeck", flag.ContinueOnError)
	mode := fs.String("mode", "", "Render surface (terminal/web)")
	port := fs.Int("port", 0, "HTTP server port (web mode)")
	source := fs.String("source", "", "Directory or archive picked by 'u'")
	ref := fs.String("ref", "", "Git ref to read the source from")
	configFile := fs.String("config", "", "Configuration file path")
	open := fs.Bool("open", false, "Open browser on startup (web mode)")
	watch := fs.Bool("watch", true, "Watch the source for changes")
	save := fs.Bool("save-config", false, "Write the effective configuration to the config file")

	if err := fs.Parse(args); err != nil {
		return nil, apperr.Config("flags", "", err)
	}

	// Determine config file path
	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else {
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("cratedeck.yaml"); err == nil {
			cfgPath = "cratedeck.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && *configFile != "" {
			// Only return error if user explicitly specified config file
			return nil, apperr.Config("load", cfgPath, err)
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override config file (only if explicitly set)
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *ref != "" {
		cfg.GitRef = *ref
	}
	if set["open"] {
		cfg.Open = *open
	}
	if set["watch"] {
		cfg.Watch = *watch
	}

	cfg.saveConfig = *save

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveRequested reports whether -save-config was given.
func (c *Config) SaveRequested() bool {
	return c.saveConfig
}

// Validate rejects unknown modes, export formats and pick policies.
func (c *Config) Validate() error {
	var errs []error
	if c.Mode != ModeTerminal && c.Mode != ModeWeb {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if _, err := archive.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := app.ParsePickPolicy(c.PickPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Export.Name == "" {
		errs = append(errs, errors.New("export name must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.Config("validate", c.configPath, err)
	}
	return nil
}

// ExportFormat returns the parsed export format.
func (c *Config) ExportFormat() archive.Format {
	f, err := archive.ParseFormat(c.Export.Format)
	if err != nil {
		return archive.FormatZip
	}
	return f
}

// Policy returns the parsed pick policy.
func (c *Config) Policy() app.PickPolicy {
	p, err := app.ParsePickPolicy(c.PickPolicy)
	if err != nil {
		return app.PickLastWriteWins
	}
	return p
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return apperr.Config("save", c.configPath, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return apperr.Config("save", c.configPath, err)
	}

	if err := os.WriteFile(c.configPath, data, 0644); err != nil {
		return apperr.Config("save", c.configPath, err)
	}
	return nil
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}
