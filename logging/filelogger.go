// Package logging stores the output of a package test run on disk.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	AllLogsFilename    = "all.log"
)

// FileLogger writes per-test output files and a combined log for one run
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	mu           sync.Mutex            // Protects asyncWriters
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory <baseDir>/testrun-<runID>
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	for _, dir := range []string{
		logDir,
		filepath.Join(logDir, string(types.TestStatusPass)),
		filepath.Join(logDir, string(types.TestStatusFail)),
		filepath.Join(logDir, string(types.TestStatusSkip)),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}, nil
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// LogTestResult writes the script output into the directory for its status and
// appends it to the combined log. result.LogFile is set to the written file.
func (l *FileLogger) LogTestResult(pkg types.PackageIdentity, result *types.TestResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	output := stripansi.Strip(result.Output)

	name := safeFilename(fmt.Sprintf("%s_%s.log", pkg.CacheKey(), result.Descriptor.Name()))
	path := filepath.Join(l.logDir, string(result.Status), name)

	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", pkg)
	fmt.Fprintf(&b, "Test: %s\n", result.Descriptor)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Duration: %s\n", result.Duration)
	if result.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", stripansi.Strip(result.Error.Error()))
	}
	b.WriteString("\n")
	b.WriteString(output)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write test log: %w", err)
	}
	result.LogFile = path

	writer, err := l.getAsyncWriter(l.GetAllLogsFile())
	if err != nil {
		return err
	}
	header := fmt.Sprintf("[%s] %s %s (%s)\n", time.Now().Format(time.RFC3339), result.Descriptor, result.Status, result.Duration)
	return writer.Write([]byte(header + output))
}

// LogSummary writes the run summary with terminal escapes removed
func (l *FileLogger) LogSummary(summary string) error {
	writer, err := l.getAsyncWriter(l.GetSummaryFile())
	if err != nil {
		return err
	}
	return writer.Write([]byte(stripansi.Strip(summary)))
}

// Complete flushes and closes all file writers
func (l *FileLogger) Complete() error {
	l.closeAllWriters()
	return nil
}

// GetRunID returns the run id the logger was created with
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetBaseDir returns the directory of this run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

func (l *FileLogger) GetSummaryFile() string {
	return filepath.Join(l.logDir, SummaryFilename)
}

func (l *FileLogger) GetAllLogsFile() string {
	return filepath.Join(l.logDir, AllLogsFilename)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(s)
}
