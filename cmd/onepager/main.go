package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"onepager/internal/app"
	"onepager/internal/config"
	"onepager/internal/infra/logging"
)

type cliFlags struct {
	configPath    string
	langs         []string
	engine        string
	verify        bool
	expectedPages int
	logLevel      string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return app.ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitFailure
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitFailure
	}

	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS env,
	// in which case the runtime default applies.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logging.Debug(fmt.Sprintf(format, args...))
	}))

	driver, err := app.Setup(cfg)
	if err != nil {
		logging.Error("Setup failed", "error", err)
		return app.ExitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, code := app.Run(ctx, cfg.Languages, driver)
	return code
}

func parseFlags(args []string, output io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := pflag.NewFlagSet("onepager", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to YAML config (default: $CONFIG_PATH or ./"+config.DefaultConfigFile+")")
	fs.StringSliceVarP(&f.langs, "lang", "l", nil, "languages to render, in order (default: en,es)")
	fs.StringVar(&f.engine, "engine", "", "browser engine: chromedp or rod")
	fs.BoolVar(&f.verify, "verify", false, "verify the page count of each PDF")
	fs.IntVar(&f.expectedPages, "expected-pages", 0, "expected page count for --verify")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: onepager [flags]")
		fmt.Fprintln(output, "Renders the one-pager HTML to one PDF per language.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// loadConfig resolves the file, applies flag overrides and validates.
// Config loading panics on bad files; that is turned into an error here.
func loadConfig(f cliFlags) (cfg config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	// Validated once below, after the flags are merged.
	if f.configPath != "" && os.Getenv("CONFIG_PATH") == "" {
		cfg = config.ReadFrom(f.configPath)
	} else {
		cfg = config.Read()
	}

	if len(f.langs) > 0 {
		cfg.Languages = f.langs
	}
	if f.engine != "" {
		cfg.Render.Engine = f.engine
	}
	if f.verify {
		cfg.Verify.Enabled = true
	}
	if f.expectedPages > 0 {
		cfg.Verify.ExpectedPages = f.expectedPages
	}
	if f.logLevel != "" {
		cfg.Logger.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
