package report

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/devicelab-dev/basil/pkg/logger"
)

// TestInfo is what the index needs to know about a test before it runs.
type TestInfo struct {
	Name        string
	Description string
}

// NewIndex builds a pending index for tests.
func NewIndex(runID string, browser Browser, version string, tests []TestInfo) *Index {
	idx := &Index{
		Version: Version,
		RunID:   runID,
		Status:  StatusPending,
		Browser: browser,
		Basil:   RunnerInfo{Version: version},
		Tests:   make([]TestEntry, len(tests)),
	}
	for i, t := range tests {
		idx.Tests[i] = TestEntry{
			Index:       i,
			ID:          fmt.Sprintf("test-%03d", i+1),
			Name:        t.Name,
			Description: t.Description,
			Status:      StatusPending,
		}
	}
	idx.Summary = computeSummary(idx.Tests)
	return idx
}

// IndexWriter provides thread-safe updates to the report index.
// Multiple test goroutines can update the index concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	fs        afero.Fs
	outputDir string
	path      string
	index     *Index
}

// NewIndexWriter creates a new IndexWriter writing under outputDir on fs.
func NewIndexWriter(fs afero.Fs, outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		fs:        fs,
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     index,
	}
}

// Path returns the report file.
func (w *IndexWriter) Path() string { return w.path }

// Start marks the run as started.
func (w *IndexWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	return w.flushLocked()
}

// UpdateTest updates a test entry and rewrites the index.
func (w *IndexWriter) UpdateTest(testID string, update TestUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Tests {
		if w.index.Tests[i].ID == testID {
			applyUpdate(&w.index.Tests[i], update)
			return w.flushLocked()
		}
	}
	return fmt.Errorf("unknown test %s", testID)
}

// AddSession records a browser session used by the run.
func (w *IndexWriter) AddSession(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index.Browser.Sessions = append(w.index.Browser.Sessions, id)
}

// End marks the run as complete.
func (w *IndexWriter) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = computeRunStatus(w.index.Tests)
	return w.flushLocked()
}

// GetIndex returns a copy of the current index.
func (w *IndexWriter) GetIndex() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := *w.index
	idx.Tests = append([]TestEntry(nil), w.index.Tests...)
	return idx
}

// WriteAsset stores data under assets/<testID>/name and returns its path
// relative to the report directory.
func (w *IndexWriter) WriteAsset(testID, name string, data []byte) (string, error) {
	rel := path.Join("assets", testID, name)
	full := filepath.Join(w.outputDir, filepath.FromSlash(rel))
	if err := w.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := afero.WriteFile(w.fs, full, data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

func (w *IndexWriter) flushLocked() error {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = computeSummary(w.index.Tests)
	if err := atomicWriteJSON(w.fs, w.path, w.index); err != nil {
		logger.Error("write report %s: %v", w.path, err)
		return err
	}
	return nil
}

func applyUpdate(t *TestEntry, update TestUpdate) {
	t.Status = update.Status
	if update.Worker != 0 {
		t.Worker = update.Worker
	}
	if update.StartTime != nil {
		t.StartTime = update.StartTime
	}
	if update.EndTime != nil {
		t.EndTime = update.EndTime
	}
	if update.Duration != nil {
		t.Duration = update.Duration
	}
	if update.Waited != nil {
		t.Waited = update.Waited
	}
	if update.Error != nil {
		t.Error = update.Error
	}
	if update.Screenshot != "" {
		t.Screenshot = update.Screenshot
	}
	if len(update.Log) > 0 {
		t.Log = update.Log
	}
	t.UpdateSeq++
}

// computeSummary calculates summary from test statuses.
func computeSummary(tests []TestEntry) Summary {
	var s Summary
	for _, t := range tests {
		s.Total++
		switch t.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from tests. Errors outrank
// failures.
func computeRunStatus(tests []TestEntry) Status {
	status := StatusPassed
	for _, t := range tests {
		if !t.Status.IsTerminal() {
			return StatusRunning
		}
		switch t.Status {
		case StatusErrored:
			status = StatusErrored
		case StatusFailed:
			if status != StatusErrored {
				status = StatusFailed
			}
		}
	}
	return status
}

func atomicWriteJSON(fs afero.Fs, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return err
	}
	return fs.Rename(tmp, path)
}

// ReadIndex loads report.json from dir.
func ReadIndex(fs afero.Fs, dir string) (*Index, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, "report.json"))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &idx, nil
}
