/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Retention management for the workbench's log directory. Rotates
oversized log files (with optional gzip compression) and prunes the oldest
ones past the retention limit. Runs once at logger startup.
*/

package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// logFilePattern matches the workbench's log files, rotated or not
const logFilePattern = "bytemap_*.log*"

// LogManager enforces the retention policy over a log directory
type LogManager struct {
	dir      string
	maxFiles int
	maxSize  int64
	compress bool
}

// NewLogManager builds a manager from the logger's configuration
func NewLogManager(config *LoggerConfig) *LogManager {
	return &LogManager{
		dir:      config.OutputDir,
		maxFiles: config.MaxFiles,
		maxSize:  config.MaxSize,
		compress: config.Compress,
	}
}

// logFileInfo pairs a log path with its stat data for policy decisions
type logFileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// scan collects the log files in the directory, oldest first
func (lm *LogManager) scan() ([]logFileInfo, error) {
	paths, err := filepath.Glob(filepath.Join(lm.dir, logFilePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan log directory: %w", err)
	}

	infos := make([]logFileInfo, 0, len(paths))
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, logFileInfo{path: path, size: stat.Size(), modTime: stat.ModTime()})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].modTime.Before(infos[j].modTime)
	})

	return infos, nil
}

// Maintain applies the retention policy: oversized logs rotate (and
// optionally compress), then the oldest files past the retention count are
// removed. Called once when the logger starts.
func (lm *LogManager) Maintain() error {
	infos, err := lm.scan()
	if err != nil {
		return err
	}

	for _, info := range infos {
		// Only live logs rotate; rotated and compressed files just age out
		if info.size < lm.maxSize || !strings.HasSuffix(info.path, ".log") {
			continue
		}
		if err := lm.rotate(info.path); err != nil {
			return fmt.Errorf("failed to rotate %s: %w", info.path, err)
		}
	}

	return lm.prune()
}

// rotate renames an oversized log aside and optionally gzips it
func (lm *LogManager) rotate(path string) error {
	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.Rename(path, rotated); err != nil {
		return err
	}

	if !lm.compress {
		return nil
	}
	return gzipFile(rotated)
}

// prune removes the oldest log files beyond the retention count
func (lm *LogManager) prune() error {
	infos, err := lm.scan()
	if err != nil {
		return err
	}

	excess := len(infos) - lm.maxFiles
	for i := 0; i < excess; i++ {
		if err := os.Remove(infos[i].path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", infos[i].path, err)
		}
	}

	return nil
}

// gzipFile replaces a file with its gzip-compressed form
func gzipFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	compressed, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer compressed.Close()

	writer := gzip.NewWriter(compressed)
	if _, err := io.Copy(writer, source); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
