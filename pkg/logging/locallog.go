package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures a RotatingFile.
type FileConfig struct {
	Path     string
	MaxSize  int64 // max file size in bytes (default: 10MB)
	MaxFiles int   // number of rotated files to keep (default: 5)
}

// RotatingFile is an io.Writer appending to a file that is rotated to
// <path>.1, <path>.2, ... once it grows past MaxSize.
type RotatingFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxSize  int64
	maxFiles int
	written  int64
}

// OpenFile opens cfg.Path for appending, creating its directory.
func OpenFile(cfg FileConfig) (*RotatingFile, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 5
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rf := &RotatingFile{file: f, path: cfg.Path, maxSize: maxSize, maxFiles: maxFiles}
	if info, err := f.Stat(); err == nil {
		rf.written = info.Size()
	}
	return rf, nil
}

// Write implements io.Writer. A record is never split across files.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fmt.Errorf("log file closed")
	}
	n, err := rf.file.Write(p)
	rf.written += int64(n)
	if err != nil {
		return n, err
	}
	if rf.written >= rf.maxSize {
		if err := rf.rotate(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close closes the file. Closing twice is a no-op.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) rotate() error {
	rf.file.Close()
	rf.file = nil

	os.Remove(fmt.Sprintf("%s.%d", rf.path, rf.maxFiles))
	for i := rf.maxFiles - 1; i > 0; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rf.path, i), fmt.Sprintf("%s.%d", rf.path, i+1))
	}
	os.Rename(rf.path, rf.path+".1")

	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("reopen rotated log file: %w", err)
	}
	rf.file = f
	rf.written = 0
	return nil
}
