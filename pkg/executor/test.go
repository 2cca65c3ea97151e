package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/basil/pkg/basil"
	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/interact"
	"github.com/devicelab-dev/basil/pkg/logger"
)

// Test is one browser test. SetUp runs before Run, and TearDown runs after
// Run whenever SetUp succeeded.
type Test interface {
	SetUp(cfg TestConfig) error
	Run(ctx context.Context, s *Session) error
	TearDown() error
}

// Case describes a test to schedule. New is called once per execution so
// workers never share test state.
type Case struct {
	Name        string
	Description string
	Properties  map[string]string
	New         func() Test
}

// TestConfig is handed to a test before it runs.
type TestConfig struct {
	Name        string
	Description string
	Properties  map[string]string

	ctx *TestContext
}

// Context returns the test's logging context.
func (c TestConfig) Context() *TestContext { return c.ctx }

// Property returns a test property.
func (c TestConfig) Property(key string) (string, bool) {
	v, ok := c.Properties[key]
	return v, ok
}

// PropertyKeys returns the property names in order.
func (c TestConfig) PropertyKeys() []string {
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TestContext collects the log of one test execution. Lines go to the basil
// log and are kept for the report.
type TestContext struct {
	entry *logrus.Entry

	mu    sync.Mutex
	lines []string
}

func newTestContext(name, id string) *TestContext {
	return &TestContext{
		entry: logger.WithFields(logrus.Fields{"test": name, "id": id}),
	}
}

// Log records a message.
func (c *TestContext) Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.entry.Info(msg)
	c.append(msg)
}

// LogError records a message along with its cause.
func (c *TestContext) LogError(cause error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		c.entry.WithError(cause).Error(msg)
		msg = msg + ": " + cause.Error()
	} else {
		c.entry.Error(msg)
	}
	c.append(msg)
}

func (c *TestContext) append(msg string) {
	c.mu.Lock()
	c.lines = append(c.lines, msg)
	c.mu.Unlock()
}

// Lines returns everything logged so far.
func (c *TestContext) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// BaseTest implements SetUp and TearDown and prefixes log lines with the
// test name. Embed it and implement Run.
type BaseTest struct {
	Config TestConfig
}

// SetUp stores cfg.
func (b *BaseTest) SetUp(cfg TestConfig) error {
	b.Config = cfg
	return nil
}

// TearDown does nothing.
func (b *BaseTest) TearDown() error { return nil }

// Log writes a line prefixed with the test name.
func (b *BaseTest) Log(format string, args ...interface{}) {
	if c := b.Config.Context(); c != nil {
		c.Log("%s", b.prefix()+fmt.Sprintf(format, args...))
	}
}

// LogError writes a line and its cause prefixed with the test name.
func (b *BaseTest) LogError(cause error, format string, args ...interface{}) {
	if c := b.Config.Context(); c != nil {
		c.LogError(cause, "%s", b.prefix()+fmt.Sprintf(format, args...))
	}
}

func (b *BaseTest) prefix() string {
	return "[" + b.Config.Name + "] "
}

// Session is what a test drives: the browser, the root context for page
// objects, and the element service.
type Session struct {
	Driver  core.WebDriver
	Context *basil.Context
	Config  *config.Config
	Service *interact.Service
	Worker  int
}

// NewSession wraps d for tests run by worker.
func NewSession(d core.WebDriver, cfg *config.Config, worker int) *Session {
	return &Session{
		Driver:  d,
		Context: basil.NewDriverContext(d),
		Config:  cfg,
		Service: interact.New(d, cfg),
		Worker:  worker,
	}
}
