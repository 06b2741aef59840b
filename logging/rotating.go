package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	filePrefix = "rxsearch-"
	fileSuffix = ".log"

	defaultMaxFileSize = 100 * 1024 * 1024
)

var numberedFilePattern = regexp.MustCompile(`^rxsearch-\d{4}-\d{2}-\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one file per day, opening numbered siblings once the
// size limit is hit, and removes files older than the retention period.
type RotatingLogger struct {
	logDir      string
	currentFile *os.File
	currentDay  string
	retention   time.Duration
	maxFileSize int64
	currentSize atomic.Int64
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
	cleanupOnce sync.Once
}

// NewRotatingLogger creates a rotating logger with the default 100MB size limit
func NewRotatingLogger(logDir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, defaultMaxFileSize)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger with a custom size limit.
// A limit of zero disables size based rotation.
func NewRotatingLoggerWithSizeLimit(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// getDayKey returns the file key for t in YYYY-MM-DD format
func getDayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// rotate opens the file for day (caller must hold the lock)
func (rl *RotatingLogger) rotate(day string, sizeExceeded bool) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
		rl.currentFile = nil
	}

	fileName := rl.pickFileName(day, sizeExceeded)
	logPath := filepath.Join(rl.logDir, fileName)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	rl.currentFile = file
	rl.currentDay = day
	rl.currentSize.Store(0)
	if info, err := file.Stat(); err == nil {
		rl.currentSize.Store(info.Size())
	}

	return nil
}

// pickFileName returns the base file for day while it has room, otherwise the
// highest numbered sibling with room, otherwise the next numbered sibling. A
// rotation forced by size always moves to a new sibling.
func (rl *RotatingLogger) pickFileName(day string, sizeExceeded bool) string {
	baseName := filePrefix + day + fileSuffix

	if !sizeExceeded {
		info, err := os.Stat(filepath.Join(rl.logDir, baseName))
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return baseName
		}
	}

	highest, highestSize := rl.highestNumberedFile(day)
	if !sizeExceeded && highest > 0 && highestSize < rl.maxFileSize {
		return fmt.Sprintf("%s%s_%02d%s", filePrefix, day, highest, fileSuffix)
	}

	return fmt.Sprintf("%s%s_%02d%s", filePrefix, day, highest+1, fileSuffix)
}

// highestNumberedFile finds the highest sequence number used for day
func (rl *RotatingLogger) highestNumberedFile(day string) (int, int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+day+"_??"+fileSuffix))

	highest := 0
	var highestSize int64
	for _, match := range matches {
		m := numberedFilePattern.FindStringSubmatch(filepath.Base(match))
		if len(m) < 2 {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		if num <= highest {
			continue
		}
		highest = num
		highestSize = 0
		if info, err := os.Stat(match); err == nil {
			highestSize = info.Size()
		}
	}

	return highest, highestSize
}

// Write writes p to the current file, rotating first on day change or when p
// would push the file over the size limit.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	day := getDayKey(time.Now())
	sizeExceeded := false
	if rl.currentFile != nil && rl.maxFileSize > 0 && rl.currentDay == day {
		size := rl.currentSize.Load()
		sizeExceeded = size > 0 && size+int64(len(p)) > rl.maxFileSize
	}

	if rl.currentFile == nil || rl.currentDay != day || sizeExceeded {
		if err := rl.rotate(day, sizeExceeded); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files older than the retention period
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

// startCleanup runs the retention sweep once now and then daily until Close
func (rl *RotatingLogger) startCleanup() {
	rl.cleanupOnce.Do(func() {
		go func() {
			defer close(rl.cleanupDone)

			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()

			for {
				if deleted, err := rl.cleanupOldLogs(); err != nil {
					slog.Warn("Failed to cleanup old logs", "error", err)
				} else if deleted > 0 {
					// Console only to avoid writing into the file being swept
					fmt.Printf("Cleaned up %d old log files\n", deleted)
				}

				select {
				case <-rl.ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

// Close stops the background sweep and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	// Nothing to wait for when the sweep never started
	rl.cleanupOnce.Do(func() { close(rl.cleanupDone) })
	select {
	case <-rl.cleanupDone:
	case <-time.After(5 * time.Second):
		fmt.Printf("Warning: log cleanup goroutine did not shutdown gracefully\n")
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile != nil {
		err := rl.currentFile.Close()
		rl.currentFile = nil
		return err
	}
	return nil
}
