package build

import (
	"fmt"
)

const (
	// Gzip is the default compressor.
	Gzip = "gzip"

	// Zstd is a modern compressor that compresses better than Gzip, in less
	// time.
	Zstd = "zstd"

	defaultLogCompressor = Gzip

	// DefaultMaxLogFiles is the default maximum number of log files to
	// keep.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the default maximum log file size in MB.
	DefaultMaxLogFileSize = 20
)

// logCompressors maps the identifier for each supported compression algorithm
// to the extension used for the compressed log files.
var logCompressors = map[string]string{
	Gzip: "gz",
	Zstd: "zst",
}

// SupportedLogCompressor returns whether or not logCompressor is a supported
// compression algorithm for log files.
func SupportedLogCompressor(logCompressor string) bool {
	_, ok := logCompressors[logCompressor]

	return ok
}

// FileLoggerConfig holds the options of the rotating log file.
//
//nolint:lll
type FileLoggerConfig struct {
	Disable        bool   `long:"disable" description:"Disable the log file."`
	Compressor     string `long:"compressor" description:"Compression algorithm to use when rotating logs." choice:"gzip" choice:"zstd"`
	MaxLogFiles    int    `long:"max-files" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"max-file-size" description:"Maximum logfile size in MB"`
}

// DefaultFileLoggerConfig returns the default log file options.
func DefaultFileLoggerConfig() *FileLoggerConfig {
	return &FileLoggerConfig{
		Compressor:     defaultLogCompressor,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
	}
}

// Validate validates the FileLoggerConfig struct values.
func (c *FileLoggerConfig) Validate() error {
	if !SupportedLogCompressor(c.Compressor) {
		return fmt.Errorf("invalid log compressor: %v", c.Compressor)
	}

	if c.MaxLogFiles < 0 {
		return fmt.Errorf("max-files must be non-negative, got %d",
			c.MaxLogFiles)
	}

	if c.MaxLogFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive, got %d",
			c.MaxLogFileSize)
	}

	return nil
}
