package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is picked up from the working directory when neither
// CONFIG_PATH nor an explicit path is given.
const DefaultConfigFile = "onepager.yaml"

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type SourceConfig struct {
	HTML string `yaml:"html"`
	Root string `yaml:"root"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	BaseName string `yaml:"base_name"`
}

type LabelsConfig struct {
	Default string `yaml:"default"`
	Pattern string `yaml:"pattern"`
}

type RenderConfig struct {
	Engine            string               `yaml:"engine"`
	ReadySelector     string               `yaml:"ready_selector"`
	ReadyTimeout      time.Duration        `yaml:"ready_timeout"`
	NavigationTimeout time.Duration        `yaml:"navigation_timeout"`
	NetworkIdle       time.Duration        `yaml:"network_idle"`
	Paper             string               `yaml:"paper"`
	PaperSizes        map[string]PaperSize `yaml:"paper_sizes"`
	Margin            float64              `yaml:"margin"`
	PrintBackground   bool                 `yaml:"print_background"`
	ChromePath        string               `yaml:"chrome_path"`
	ChromeNoSandbox   bool                 `yaml:"chrome_no_sandbox"`
	UserDataDir       string               `yaml:"user_data_dir"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	URLHost      string        `yaml:"url_host"`
	StartTimeout time.Duration `yaml:"start_timeout"`
}

type VerifyConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ExpectedPages int    `yaml:"expected_pages"`
	Backend       string `yaml:"backend"`
	PdfinfoPath   string `yaml:"pdfinfo_path"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full tool configuration.
type Config struct {
	Source          SourceConfig `yaml:"source"`
	Output          OutputConfig `yaml:"output"`
	Languages       []string     `yaml:"languages"`
	DefaultLanguage string       `yaml:"default_language"`
	Labels          LabelsConfig `yaml:"labels"`
	Render          RenderConfig `yaml:"render"`
	Server          ServerConfig `yaml:"server"`
	Verify          VerifyConfig `yaml:"verify"`
	Logger          LoggerConfig `yaml:"logger"`
}

// Engines and verifier backends accepted by Validate.
var (
	Engines         = []string{"chromedp", "rod"}
	VerifyBackends  = []string{"pdfinfo", "pdfcpu", "ledongthuc"}
	defaultA4Inches = PaperSize{Width: 8.27, Height: 11.69}
)

// Default returns the built-in configuration. It reproduces the one-pager
// layout: polisense-A4.html rendered to one-pager/ in English and Spanish.
func Default() Config {
	return Config{
		Source: SourceConfig{
			HTML: "polisense-A4.html",
			Root: ".",
		},
		Output: OutputConfig{
			Dir:      "one-pager",
			BaseName: "polisense-one-pager.pdf",
		},
		Languages:       []string{"en", "es"},
		DefaultLanguage: "en",
		Labels: LabelsConfig{
			Default: "labels.json",
			Pattern: "labels_%s.json",
		},
		Render: RenderConfig{
			Engine:            "chromedp",
			ReadySelector:     "body.content-loaded",
			ReadyTimeout:      5 * time.Second,
			NavigationTimeout: 30 * time.Second,
			NetworkIdle:       500 * time.Millisecond,
			Paper:             "A4",
			PaperSizes: map[string]PaperSize{
				"A4":     defaultA4Inches,
				"LETTER": {Width: 8.5, Height: 11},
			},
			Margin:          0,
			PrintBackground: true,
		},
		Server: ServerConfig{
			URLHost:      "localhost",
			StartTimeout: 5 * time.Second,
		},
		Verify: VerifyConfig{
			ExpectedPages: 1,
			Backend:       "pdfinfo",
			PdfinfoPath:   "pdfinfo",
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load resolves the configuration file from CONFIG_PATH or the default file
// name. Without either, the built-in defaults are returned.
// It panics on unreadable or invalid configuration.
func Load() Config {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// Read is Load without validation, for callers that merge overrides
// before calling Validate.
func Read() Config {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return ReadFrom(p)
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return ReadFrom(DefaultConfigFile)
	}
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// LoadFrom reads the YAML file at path on top of the defaults.
// It panics if the file cannot be read or holds invalid values.
func LoadFrom(path string) Config {
	cfg := ReadFrom(path)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

// ReadFrom is LoadFrom without validation. It still panics if the file
// cannot be read or parsed.
func ReadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	// Common container variable wins over an empty chrome_path.
	if cfg.Render.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.Render.ChromePath = v
		}
	}
	if v := os.Getenv("ONEPAGER_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.HTML) == "" {
		return fmt.Errorf("source.html is empty")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is empty")
	}
	if !strings.HasSuffix(c.Output.BaseName, ".pdf") {
		return fmt.Errorf("output.base_name must end with .pdf")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages is empty")
	}
	for _, l := range c.Languages {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("invalid language %q: %v", l, err)
		}
	}
	// default_language only picks the unprefixed output name, so it need
	// not be rendered.
	if _, err := language.Parse(c.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid default_language %q: %v", c.DefaultLanguage, err)
	}
	if c.Labels.Default == "" || !strings.Contains(c.Labels.Pattern, "%s") {
		return fmt.Errorf("labels.default must be set and labels.pattern must contain %%s")
	}
	if !contains(Engines, c.Render.Engine) {
		return fmt.Errorf("render.engine %q not supported", c.Render.Engine)
	}
	if c.Render.ReadySelector == "" {
		return fmt.Errorf("render.ready_selector is empty")
	}
	if c.Render.ReadyTimeout <= 0 || c.Render.NavigationTimeout <= 0 {
		return fmt.Errorf("render timeouts must be positive")
	}
	if c.Server.StartTimeout <= 0 {
		return fmt.Errorf("server.start_timeout must be positive")
	}
	if c.Render.NetworkIdle < 0 {
		return fmt.Errorf("render.network_idle must not be negative")
	}
	if _, ok := c.Render.PaperSizes[strings.ToUpper(c.Render.Paper)]; !ok {
		return fmt.Errorf("render.paper %q not configured", c.Render.Paper)
	}
	if c.Render.Margin < 0 {
		return fmt.Errorf("render.margin must not be negative")
	}
	if !contains(VerifyBackends, c.Verify.Backend) {
		return fmt.Errorf("verify.backend %q not supported", c.Verify.Backend)
	}
	if c.Verify.ExpectedPages < 1 {
		return fmt.Errorf("verify.expected_pages must be at least 1")
	}
	return nil
}

// Paper returns the configured paper size.
func (c Config) Paper() PaperSize {
	if p, ok := c.Render.PaperSizes[strings.ToUpper(c.Render.Paper)]; ok {
		return p
	}
	return defaultA4Inches
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
