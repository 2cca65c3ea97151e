// Package driver starts browser sessions the way the configuration asks for:
// a local browser, a remote WebDriver session, or a remote session kept
// alive across runs.
package driver

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/driver/local"
	"github.com/devicelab-dev/basil/pkg/driver/webdriver"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
	"github.com/devicelab-dev/basil/pkg/session"
)

// Factory creates and releases drivers.
type Factory struct {
	cfg      *config.Config
	fs       afero.Fs
	clientID string
}

// NewFactory uses fs for the session file of reusable remote sessions.
func NewFactory(cfg *config.Config, fs afero.Fs) *Factory {
	return &Factory{cfg: cfg, fs: fs, clientID: session.NewClientID()}
}

// ClientID identifies this process in the session file.
func (f *Factory) ClientID() string { return f.clientID }

// Store returns the session store used for reusable remote sessions.
func (f *Factory) Store() *session.Store {
	return session.NewStore(f.fs, f.cfg.SessionFilePath())
}

// Capabilities builds the W3C alwaysMatch capabilities for the browser.
func Capabilities(b config.BrowserConfig) map[string]interface{} {
	caps := map[string]interface{}{
		"browserName": b.Type.CapabilityName(),
	}
	if !b.Headless {
		return caps
	}
	switch b.Type {
	case config.BrowserChrome:
		caps["goog:chromeOptions"] = map[string]interface{}{"args": []string{"--headless=new"}}
	case config.BrowserEdge:
		caps["ms:edgeOptions"] = map[string]interface{}{"args": []string{"--headless=new"}}
	case config.BrowserFirefox:
		caps["moz:firefoxOptions"] = map[string]interface{}{"args": []string{"-headless"}}
	}
	return caps
}

// New starts a driver and sizes its window.
func (f *Factory) New(ctx context.Context) (core.WebDriver, error) {
	var (
		d   core.WebDriver
		err error
	)
	switch f.cfg.WebDriver.Type {
	case config.DriverStandard:
		d, err = f.standard(ctx)
	case config.DriverRemote:
		d, err = f.remote(ctx)
	case config.DriverReusableRemote:
		d, err = f.reusable(ctx)
	default:
		return nil, core.ErrInvalidConfig.WithMessagef("unknown web driver type %q", f.cfg.WebDriver.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.sizeWindow(d); err != nil {
		_ = f.Release(d)
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"browser": f.cfg.Browser.Type,
		"driver":  f.cfg.WebDriver.Type,
		"session": d.SessionID(),
	}).Info("driver started")
	return d, nil
}

func (f *Factory) standard(ctx context.Context) (core.WebDriver, error) {
	switch f.cfg.Browser.Type {
	case config.BrowserChrome, config.BrowserEdge, config.BrowserOpera:
	default:
		return nil, core.ErrUnsupported.WithMessagef("the standard driver runs Chromium browsers only, not %s", f.cfg.Browser.Type)
	}
	return local.Start(ctx, local.Options{
		Bin:      f.cfg.WebDriver.Executable,
		Headless: f.cfg.Browser.Headless,
		Timeout:  f.cfg.WebDriver.WaitTimeout,
	})
}

func (f *Factory) client(ctx context.Context) (*webdriver.Client, error) {
	c := webdriver.NewClient(f.cfg.WebDriver.RemoteURL, webdriver.WithRateLimit(f.cfg.WebDriver.RateLimit))
	if err := c.WaitForServer(ctx, f.cfg.WebDriver.WaitTimeout); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *Factory) connect(ctx context.Context, c *webdriver.Client) (*webdriver.Driver, error) {
	if err := c.Connect(ctx, Capabilities(f.cfg.Browser)); err != nil {
		return nil, err
	}
	d := webdriver.Attach(ctx, c)
	if t := f.cfg.WebDriver.Implicit; t > 0 {
		if err := c.SetImplicitWait(ctx, t); err != nil {
			_ = d.Quit()
			return nil, err
		}
	}
	return d, nil
}

func (f *Factory) remote(ctx context.Context) (core.WebDriver, error) {
	c, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	return f.connect(ctx, c)
}

func (f *Factory) reusable(ctx context.Context) (core.WebDriver, error) {
	c, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	store := f.Store()
	browser := string(f.cfg.Browser.Type)
	ok, err := session.Reattach(ctx, store, c, browser)
	if err != nil {
		return nil, err
	}
	if ok {
		return webdriver.Attach(ctx, c), nil
	}

	d, err := f.connect(ctx, c)
	if err != nil {
		return nil, err
	}
	rec := session.Record{
		ID:        d.SessionID(),
		ServerURL: c.ServerURL(),
		Browser:   browser,
		ClientID:  f.clientID,
	}
	if err := store.Save(rec); err != nil {
		_ = d.Quit()
		return nil, fmt.Errorf("record session: %w", err)
	}
	return d, nil
}

func (f *Factory) sizeWindow(d core.WebDriver) error {
	b := f.cfg.Browser
	switch {
	case b.Maximized:
		return d.MaximizeWindow()
	case len(b.Dimension) == 2:
		return d.SetWindowSize(b.Dimension[0], b.Dimension[1])
	}
	return nil
}

// Release ends d. Reusable remote sessions are only detached so a later run
// can pick them up. The time spent waiting during the session is logged and
// the counter starts over.
func (f *Factory) Release(d core.WebDriver) error {
	waited := metrics.ResetTotalWaited()
	logger.Info("session %s waited %s in total", d.SessionID(), waited)

	if wd, ok := d.(*webdriver.Driver); ok && f.cfg.WebDriver.Type == config.DriverReusableRemote {
		id := wd.Detach()
		logger.Info("session %s left running for reuse", id)
		return nil
	}
	return d.Quit()
}
