// Package config handles configuration for basil.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/basil/pkg/core"
)

// BrowserType names the browser a session is started with.
type BrowserType string

const (
	BrowserChrome           BrowserType = "chrome"
	BrowserEdge             BrowserType = "edge"
	BrowserFirefox          BrowserType = "firefox"
	BrowserInternetExplorer BrowserType = "internet_explorer"
	BrowserOpera            BrowserType = "opera"
	BrowserSafari           BrowserType = "safari"
)

// CapabilityName returns the W3C browserName capability.
func (b BrowserType) CapabilityName() string {
	switch b {
	case BrowserEdge:
		return "MicrosoftEdge"
	case BrowserInternetExplorer:
		return "internet explorer"
	default:
		return string(b)
	}
}

// DriverType selects how the browser session is obtained.
type DriverType string

const (
	DriverStandard       DriverType = "standard"
	DriverRemote         DriverType = "remote"
	DriverReusableRemote DriverType = "session-reusable-remote"
)

// NotFoundPolicy decides whether polling waits ignore "no such element".
type NotFoundPolicy string

const (
	NotFoundIgnore NotFoundPolicy = "ignore"
	NotFoundThrow  NotFoundPolicy = "throw"
)

// ParseNotFoundPolicy parses a policy name, case-insensitively.
func ParseNotFoundPolicy(s string) (NotFoundPolicy, error) {
	switch p := NotFoundPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case NotFoundIgnore, NotFoundThrow:
		return p, nil
	}
	return "", fmt.Errorf("unknown not-found policy %q", s)
}

// Config represents the workspace configuration (basil.yaml).
type Config struct {
	Browser    BrowserConfig    `yaml:"browser" envconfig:"BASIL_BROWSER"`
	WebDriver  WebDriverConfig  `yaml:"webDriver" envconfig:"BASIL_WEBDRIVER"`
	WebElement WebElementConfig `yaml:"webElement" envconfig:"BASIL_ELEMENT"`
	PageObject PageObjectConfig `yaml:"pageObject" envconfig:"BASIL_PAGE"`
	Wait       WaitConfig       `yaml:"wait" envconfig:"BASIL_WAIT"`
	Lookup     LookupConfig     `yaml:"lookup" envconfig:"BASIL_LOOKUP"`
}

// BrowserConfig describes the browser window.
type BrowserConfig struct {
	Type      BrowserType `yaml:"type" envconfig:"TYPE"`
	Maximized bool        `yaml:"maximized" envconfig:"MAXIMIZED"`
	Dimension []int       `yaml:"dimension" envconfig:"DIMENSION"` // width, height
	Headless  bool        `yaml:"headless" envconfig:"HEADLESS"`
}

// WebDriverConfig selects and tunes the driver backend.
type WebDriverConfig struct {
	Type        DriverType    `yaml:"type" envconfig:"TYPE"`
	RemoteURL   string        `yaml:"remoteURL" envconfig:"REMOTE_URL"`
	Executable  string        `yaml:"executable" envconfig:"EXECUTABLE"` // local browser binary
	WaitTimeout time.Duration `yaml:"waitTimeout" envconfig:"WAIT_TIMEOUT"`
	WaitPoll    time.Duration `yaml:"waitPoll" envconfig:"WAIT_POLL"`
	RateLimit   float64       `yaml:"rateLimit" envconfig:"RATE_LIMIT"` // requests per second, 0 = unlimited
	SessionFile string        `yaml:"sessionFile" envconfig:"SESSION_FILE"`
	Implicit    time.Duration `yaml:"implicitWait" envconfig:"IMPLICIT_WAIT"`
}

// WebElementConfig tunes element checks.
type WebElementConfig struct {
	EnableLatency            time.Duration `yaml:"enableLatency" envconfig:"ENABLE_LATENCY"`
	ValidationException      bool          `yaml:"validationException" envconfig:"VALIDATION_EXCEPTION"`
	IgnoredValidationTypes   []string      `yaml:"ignoredValidationTypes" envconfig:"IGNORED_VALIDATION_TYPES"`
	InteractibilityCondition string        `yaml:"interactibilityPrecondition" envconfig:"INTERACTIBILITY_PRECONDITION"`
	LoadingUnavailableAsIdle bool          `yaml:"loadingUnavailableAsIdle" envconfig:"LOADING_UNAVAILABLE_AS_IDLE"`
}

// PageObjectConfig tunes page object initialization.
type PageObjectConfig struct {
	LocateTimeout time.Duration `yaml:"locateTimeout" envconfig:"LOCATE_TIMEOUT"`
	LocateByID    bool          `yaml:"locateByID" envconfig:"LOCATE_BY_ID"`
	WaitTimeout   time.Duration `yaml:"waitTimeout" envconfig:"WAIT_TIMEOUT"`
	TimerStyle    string        `yaml:"timerStyle" envconfig:"TIMER_STYLE"`
}

// WaitConfig is the default polling wait.
type WaitConfig struct {
	Interval time.Duration  `yaml:"interval" envconfig:"INTERVAL"`
	Timeout  time.Duration  `yaml:"timeout" envconfig:"TIMEOUT"`
	NotFound NotFoundPolicy `yaml:"notFound" envconfig:"NOT_FOUND"`
}

// LookupConfig tunes cached lookups.
type LookupConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() *Config {
	return &Config{
		Browser: BrowserConfig{
			Type:     BrowserChrome,
			Headless: true,
		},
		WebDriver: WebDriverConfig{
			Type:        DriverRemote,
			RemoteURL:   "http://localhost:4444",
			WaitTimeout: 30 * time.Second,
			WaitPoll:    500 * time.Millisecond,
		},
		WebElement: WebElementConfig{
			ValidationException:      true,
			InteractibilityCondition: "visible",
		},
		PageObject: PageObjectConfig{
			LocateTimeout: 10 * time.Second,
			WaitTimeout:   60 * time.Second,
			TimerStyle:    "concise",
		},
		Wait: WaitConfig{
			Interval: 500 * time.Millisecond,
			Timeout:  10 * time.Second,
			NotFound: NotFoundIgnore,
		},
		Lookup: LookupConfig{
			Concurrency: 4,
		},
	}
}

// Load loads configuration from a file on top of Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("cannot parse " + path).WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for basil.yaml or basil.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try basil.yaml first
	configPath := filepath.Join(dir, "basil.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try basil.yml
	configPath = filepath.Join(dir, "basil.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Defaults(), nil
}

// ApplyEnv overlays BASIL_* environment variables, for example
// BASIL_WAIT_TIMEOUT=5s or BASIL_WEBDRIVER_REMOTE_URL. Variables that are not
// set leave the current value alone.
func (c *Config) ApplyEnv(lookup ...func(key string) (string, bool)) error {
	if err := envconfig.Process("", c, lookup...); err != nil {
		return core.ErrInvalidConfig.WithMessage("cannot apply environment").WithCause(err)
	}
	return c.Validate()
}

// Validate checks enumerated values and required settings.
func (c *Config) Validate() error {
	switch c.Browser.Type {
	case BrowserChrome, BrowserEdge, BrowserFirefox, BrowserInternetExplorer, BrowserOpera, BrowserSafari:
	default:
		return core.ErrInvalidConfig.WithMessagef("unknown browser type %q", c.Browser.Type)
	}

	switch c.WebDriver.Type {
	case DriverStandard:
	case DriverRemote, DriverReusableRemote:
		if c.WebDriver.RemoteURL == "" {
			return core.ErrInvalidConfig.WithMessagef("webDriver.remoteURL is required for %s", c.WebDriver.Type)
		}
	default:
		return core.ErrInvalidConfig.WithMessagef("unknown web driver type %q", c.WebDriver.Type)
	}

	if d := c.Browser.Dimension; len(d) != 0 && (len(d) != 2 || d[0] <= 0 || d[1] <= 0) {
		return core.ErrInvalidConfig.WithMessagef("browser.dimension must be [width, height], got %v", d)
	}

	policy, err := ParseNotFoundPolicy(string(c.Wait.NotFound))
	if err != nil {
		return core.ErrInvalidConfig.WithCause(err)
	}
	c.Wait.NotFound = policy

	if c.Wait.Interval <= 0 || c.Wait.Timeout <= 0 {
		return core.ErrInvalidConfig.WithMessage("wait.interval and wait.timeout must be positive")
	}
	if c.Lookup.Concurrency < 1 {
		c.Lookup.Concurrency = 1
	}
	return nil
}

// SessionFilePath returns the file a reusable remote session is kept in.
func (c *Config) SessionFilePath() string {
	if c.WebDriver.SessionFile != "" {
		return c.WebDriver.SessionFile
	}
	return filepath.Join(GetSessionDir(), "session.json")
}
