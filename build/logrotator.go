package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
)

// RotatingLogWriter feeds log lines to a size bounded, compressed set of log
// files. Writes before InitLogRotator and after Close are dropped.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingLogWriter returns a writer with no log file yet.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// newCompressor returns the rotator compressor for the named algorithm.
func newCompressor(name string) (rotator.Compressor, error) {
	switch name {
	case Gzip:
		return gzip.NewWriter(nil), nil

	case Zstd:
		return zstd.NewWriter(nil)

	default:
		return nil, fmt.Errorf("unknown log compressor: %v", name)
	}
}

// InitLogRotator starts rotating logFile as configured by cfg. Roll files are
// created next to logFile. Close must be called on shutdown.
func (r *RotatingLogWriter) InitLogRotator(cfg *FileLoggerConfig,
	logFile string) error {

	compressor, err := newCompressor(cfg.Compressor)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("unable to create log directory: %w", err)
	}

	maxSize := int64(cfg.MaxLogFileSize) * 1024
	rot, err := rotator.New(logFile, maxSize, false, cfg.MaxLogFiles)
	if err != nil {
		return fmt.Errorf("unable to create log rotator: %w", err)
	}
	rot.SetCompressor(compressor, logCompressors[cfg.Compressor])

	pr, pw := io.Pipe()
	go func() {
		if err := rot.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotator stopped: "+
				"%v\n", err)
		}
	}()

	r.rotator = rot
	r.pipe = pw

	return nil
}

// Write hands b to the rotator.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close stops the rotator and flushes the current log file.
func (r *RotatingLogWriter) Close() error {
	if r.pipe == nil {
		return nil
	}

	_ = r.pipe.Close()
	r.pipe = nil

	return r.rotator.Close()
}
