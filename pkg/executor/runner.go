// Package executor runs basil tests against browser sessions and keeps the
// JSON report current while they run.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
	"github.com/devicelab-dev/basil/pkg/metrics"
	"github.com/devicelab-dev/basil/pkg/report"
)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir   string   // Report output directory, <home>/reports/<run id> when empty
	Fs          afero.Fs // Report filesystem, the OS filesystem when nil
	StopOnFail  bool     // Skip remaining tests after the first failure
	Screenshots bool     // Capture a screenshot when a test fails

	// Report metadata
	Browser       report.Browser
	RunnerVersion string

	// Live progress callbacks
	OnTestStart func(idx, total int, name string)
	OnTestEnd   func(name string, status report.Status, durationMs int64, err error)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	RunID        string
	Status       report.Status
	TotalTests   int
	PassedTests  int
	FailedTests  int
	ErroredTests int
	SkippedTests int
	Duration     int64 // Total duration in milliseconds
	ReportPath   string
	TestResults  []TestResult
}

// TestResult contains the outcome of a single test.
type TestResult struct {
	ID       string
	Name     string
	Status   report.Status
	Worker   int
	Duration int64
	Error    error
	Log      []string
}

// Runner runs tests one after another on a single session.
type Runner struct {
	config RunnerConfig
	cfg    *config.Config
	driver core.WebDriver
}

// New creates a new Runner.
func New(driver core.WebDriver, cfg *config.Config, rc RunnerConfig) *Runner {
	return &Runner{config: rc, cfg: cfg, driver: driver}
}

// Run executes all tests and writes the report.
func (r *Runner) Run(ctx context.Context, cases []Case) (*RunResult, error) {
	ex, err := newExecution(r.config, cases)
	if err != nil {
		return nil, err
	}
	ex.writer.AddSession(r.driver.SessionID())
	ex.trackWaits = true

	start := time.Now()
	session := NewSession(r.driver, r.cfg, 1)
	for i := range cases {
		ex.execute(ctx, session, i)
	}
	return ex.finish(time.Since(start))
}

// execution is the state shared by everything running one set of cases.
type execution struct {
	config     RunnerConfig
	cases      []Case
	writer     *report.IndexWriter
	ids        []string
	results    []TestResult
	stop       atomic.Bool
	trackWaits bool // wait time is global, so only meaningful with one session
}

func newExecution(rc RunnerConfig, cases []Case) (*execution, error) {
	fs := rc.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	infos := make([]report.TestInfo, len(cases))
	for i, c := range cases {
		if c.New == nil {
			return nil, core.ErrInvalidConfig.WithMessagef("test %q has no constructor", c.Name)
		}
		infos[i] = report.TestInfo{Name: c.Name, Description: c.Description}
	}

	runID := uuid.NewString()
	if rc.OutputDir == "" {
		rc.OutputDir = filepath.Join(config.GetReportDir(), runID)
	}
	index := report.NewIndex(runID, rc.Browser, rc.RunnerVersion, infos)
	ex := &execution{
		config:  rc,
		cases:   cases,
		writer:  report.NewIndexWriter(fs, rc.OutputDir, index),
		ids:     make([]string, len(cases)),
		results: make([]TestResult, len(cases)),
	}
	for i, t := range index.Tests {
		ex.ids[i] = t.ID
		ex.results[i] = TestResult{ID: t.ID, Name: t.Name, Status: report.StatusPending}
	}
	if err := ex.writer.Start(); err != nil {
		return nil, fmt.Errorf("start report: %w", err)
	}
	return ex, nil
}

// execute runs case idx on s and records its result.
func (ex *execution) execute(ctx context.Context, s *Session, idx int) {
	c := ex.cases[idx]
	id := ex.ids[idx]

	if ex.stop.Load() || ctx.Err() != nil {
		ex.results[idx] = TestResult{ID: id, Name: c.Name, Status: report.StatusSkipped, Worker: s.Worker}
		ex.update(id, report.TestUpdate{Status: report.StatusSkipped})
		return
	}

	if ex.config.OnTestStart != nil {
		ex.config.OnTestStart(idx, len(ex.cases), c.Name)
	}
	start := time.Now()
	ex.update(id, report.TestUpdate{Status: report.StatusRunning, Worker: s.Worker, StartTime: &start})

	var waitedBefore time.Duration
	if ex.trackWaits {
		waitedBefore = metrics.TotalWaited()
	}

	tctx := newTestContext(c.Name, id)
	err := runTest(ctx, c, tctx, s)
	outcome := core.StatusFor(err)
	status := report.FromCore(outcome)
	if !outcome.IsSuccess() {
		tctx.LogError(err, "test %s", status)
	}

	end := time.Now()
	duration := end.Sub(start).Milliseconds()
	u := report.TestUpdate{
		Status:   status,
		Worker:   s.Worker,
		EndTime:  &end,
		Duration: &duration,
		Error:    report.NewError(err),
	}
	if ex.trackWaits {
		waited := (metrics.TotalWaited() - waitedBefore).Milliseconds()
		u.Waited = &waited
	}
	if !outcome.IsSuccess() && ex.config.Screenshots {
		u.Screenshot = ex.screenshot(s, id)
	}
	u.Log = tctx.Lines()
	ex.update(id, u)

	ex.results[idx] = TestResult{
		ID:       id,
		Name:     c.Name,
		Status:   status,
		Worker:   s.Worker,
		Duration: duration,
		Error:    err,
		Log:      u.Log,
	}
	if !outcome.IsSuccess() && ex.config.StopOnFail {
		ex.stop.Store(true)
	}
	if ex.config.OnTestEnd != nil {
		ex.config.OnTestEnd(c.Name, status, duration, err)
	}
}

// runTest drives one test through its lifecycle. A panic in any phase, and
// any set-up or tear-down failure, errors the test whatever the cause.
func runTest(ctx context.Context, c Case, tctx *TestContext, s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test panicked: %v", r)
		}
	}()

	t := c.New()
	cfg := TestConfig{
		Name:        c.Name,
		Description: c.Description,
		Properties:  c.Properties,
		ctx:         tctx,
	}
	if err := t.SetUp(cfg); err != nil {
		return core.ErrIllegalState.WithMessage("set up").WithCause(err)
	}
	defer func() {
		if tdErr := t.TearDown(); tdErr != nil {
			tctx.LogError(tdErr, "tear down")
			if err == nil {
				err = core.ErrIllegalState.WithMessage("tear down").WithCause(tdErr)
			}
		}
	}()
	return t.Run(ctx, s)
}

func (ex *execution) screenshot(s *Session, id string) string {
	data, err := s.Driver.Screenshot()
	if err != nil {
		logger.Warn("screenshot for %s failed: %v", id, err)
		return ""
	}
	rel, err := ex.writer.WriteAsset(id, "failure.png", data)
	if err != nil {
		logger.Warn("save screenshot for %s: %v", id, err)
		return ""
	}
	return rel
}

func (ex *execution) update(id string, u report.TestUpdate) {
	// The report is best effort; a write failure is already logged.
	_ = ex.writer.UpdateTest(id, u)
}

func (ex *execution) finish(elapsed time.Duration) (*RunResult, error) {
	if err := ex.writer.End(); err != nil {
		return nil, fmt.Errorf("end report: %w", err)
	}
	idx := ex.writer.GetIndex()
	result := &RunResult{
		RunID:       idx.RunID,
		Status:      idx.Status,
		TotalTests:  len(ex.results),
		Duration:    elapsed.Milliseconds(),
		ReportPath:  ex.writer.Path(),
		TestResults: ex.results,
	}
	for _, tr := range ex.results {
		switch tr.Status {
		case report.StatusPassed:
			result.PassedTests++
		case report.StatusFailed:
			result.FailedTests++
		case report.StatusErrored:
			result.ErroredTests++
		case report.StatusSkipped:
			result.SkippedTests++
		}
	}
	logger.WithField("run", result.RunID).Info(fmt.Sprintf("run %s: %d passed, %d failed, %d errored, %d skipped",
		result.Status, result.PassedTests, result.FailedTests, result.ErroredTests, result.SkippedTests))
	return result, nil
}
