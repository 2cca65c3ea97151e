// Package cli provides the basil command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
)

// Version is set at build time.
var Version = "dev"

// appFs holds the session file and written artifacts.
var appFs afero.Fs = afero.NewOsFs()

// createDriver starts a browser for one command. The returned func releases it.
var createDriver = func(ctx context.Context, cfg *config.Config) (core.WebDriver, func(), error) {
	f := driver.NewFactory(cfg, appFs)
	d, err := f.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	return d, func() {
		if err := f.Release(d); err != nil {
			logger.Warn("release driver: %v", err)
		}
	}, nil
}

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "basil.yaml file or the directory holding it",
		EnvVars: []string{"BASIL_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "browser",
		Usage: "Browser to drive (chrome, edge, firefox, opera, safari, internetexplorer)",
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Web driver type (standard, remote, session-reusable-remote)",
	},
	&cli.StringFlag{
		Name:  "remote-url",
		Usage: "WebDriver server URL for remote drivers",
	},
	&cli.BoolFlag{
		Name:  "headless",
		Usage: "Run the browser without a window",
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write the log to this file",
		EnvVars: []string{"BASIL_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log to stderr at debug level",
		EnvVars: []string{"BASIL_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Serve Prometheus metrics on this address, for example :9464",
	},
}

// NewApp builds the basil application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "basil",
		Usage:   "Lazy element location and page objects for browser tests",
		Version: Version,
		Description: `basil drives a browser through WebDriver or a local Chromium and
resolves locators the way basil page objects do.

Examples:
  basil --driver remote --remote-url http://localhost:4444 session start
  basil locate --url https://example.com css "a.more"
  basil xpath convert id login
  basil scripts check`,
		Flags:  GlobalFlags,
		Before: before,
		After:  after,
		Commands: []*cli.Command{
			sessionCommand,
			locateCommand,
			screenshotCommand,
			sourceCommand,
			xpathCommand,
			scriptsCommand,
			reportCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

const metricsServerKey = "metrics-server"

func before(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			return err
		}
	}
	if c.Bool("verbose") {
		if c.String("log-file") == "" {
			logger.SetOutput(os.Stderr)
		}
		if err := logger.SetLevel("debug"); err != nil {
			return err
		}
	}

	if addr := c.String("metrics-addr"); addr != "" {
		srv := metricsServer(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server: %v", err)
			}
		}()
		if c.App.Metadata == nil {
			c.App.Metadata = map[string]interface{}{}
		}
		c.App.Metadata[metricsServerKey] = srv
		logger.Info("serving metrics on %s/metrics", addr)
	}
	return nil
}

func after(c *cli.Context) error {
	if srv, ok := c.App.Metadata[metricsServerKey].(*http.Server); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	logger.Close()
	return nil
}

func metricsServer(addr string) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// loadConfig reads the configuration, then environment variables, then
// command-line overrides, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := readConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if c.IsSet("browser") {
		cfg.Browser.Type = config.BrowserType(c.String("browser"))
	}
	if c.IsSet("driver") {
		cfg.WebDriver.Type = config.DriverType(c.String("driver"))
	}
	if c.IsSet("remote-url") {
		cfg.WebDriver.RemoteURL = c.String("remote-url")
	}
	if c.IsSet("headless") {
		cfg.Browser.Headless = c.Bool("headless")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromDir(".")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("config %s", path).WithCause(err)
	}
	if info.IsDir() {
		return config.LoadFromDir(path)
	}
	return config.Load(path)
}

// withDriver starts a browser, opens url when set, and hands the driver to fn.
func withDriver(c *cli.Context, url string, fn func(d core.WebDriver) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, release, err := createDriver(c.Context, cfg)
	if err != nil {
		return err
	}
	defer release()

	if url != "" {
		if err := d.Navigate(url); err != nil {
			return fmt.Errorf("open %s: %w", url, err)
		}
	}
	return fn(d)
}

func out(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
