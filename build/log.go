package build

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
)

// LogType is an indicating the type of logging specified by the build flag.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut all logging is written directly to stdout.
	LogTypeStdOut

	// LogTypeDefault logs to both stderr and a given io.Writer.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// LogWriter is the console writer of a log backend. Its behavior depends on
// the build flags: by default it writes to stderr and RotatorPipe, "stdlog"
// writes to stdout only, and "nolog" discards everything.
type LogWriter struct {
	// RotatorPipe receives a copy of every line in default builds. It
	// may be nil.
	RotatorPipe io.Writer
}

// NewSubLogger constructs a new subsystem log from the current LogWriter
// implementation. This is primarily intended for use with stdlog, as the actual
// writer is shared amongst all instantiations.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch Deployment {

	// For production builds, generate a new subsystem logger from the
	// primary log backend. If no function is provided, logging will be
	// disabled.
	case Production:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	// For development builds, we must handle two distinct types of logging:
	// unit tests and running the CLI against a live node.
	case Development:
		switch LoggingType {

		// Default logging is used when running the CLI. We'll use the
		// optional sublogger constructor to mimic the production
		// behavior.
		case LogTypeDefault:
			if genSubLogger != nil {
				return genSubLogger(subsystem)
			}

		// Logging to stdout is used in unit tests. It is not important
		// that they share the same backend, since all output is written
		// to std out.
		case LogTypeStdOut:
			backend := btclog.NewBackend(&LogWriter{})
			logger := backend.Logger(subsystem)

			// Set the logging level of the stdout logger to use the
			// configured logging level specified by build flags.
			level, _ := btclog.LevelFromString(LogLevel)
			logger.SetLevel(level)

			return logger
		}
	}

	// For any other configurations, we'll disable logging.
	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns a slice of strings containing the names
	// of the supported subsystems. Should ideally correspond to the keys
	// of the subsystem logger map and be sorted.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// SubLoggerManager creates sub-loggers on a shared backend and keeps track of
// them so their levels can be changed at runtime.
type SubLoggerManager struct {
	backend *btclog.Backend

	mu         sync.Mutex
	subLoggers SubLoggers
}

// A compile time check to ensure SubLoggerManager implements the
// LeveledSubLogger interface.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager creates a manager whose sub-loggers all write to w.
func NewSubLoggerManager(w io.Writer) *SubLoggerManager {
	return &SubLoggerManager{
		backend:    btclog.NewBackend(w),
		subLoggers: make(SubLoggers),
	}
}

// GenSubLogger creates and registers a logger for the given subsystem. It can
// be passed directly to NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	logger := m.backend.Logger(subsystem)
	m.RegisterSubLogger(subsystem, logger)

	return logger
}

// RegisterSubLogger registers an existing logger under the given subsystem.
func (m *SubLoggerManager) RegisterSubLogger(subsystem string,
	logger btclog.Logger) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.subLoggers[subsystem] = logger
}

// SubLoggers returns a copy of the registered subsystem loggers.
func (m *SubLoggerManager) SubLoggers() SubLoggers {
	m.mu.Lock()
	defer m.mu.Unlock()

	loggers := make(SubLoggers, len(m.subLoggers))
	for k, v := range m.subLoggers {
		loggers[k] = v
	}

	return loggers
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subsystems := make([]string, 0, len(m.subLoggers))
	for subsysID := range m.subLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Unknown
// subsystems are ignored.
func (m *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger, ok := m.subLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, logger := range m.subLoggers {
		logger.SetLevel(level)
	}
}

// ParseAndSetDebugLevels applies a debug level string to logger. The string
// is either a single level for every subsystem, or a comma separated list of
// subsystem=level pairs that may be preceded by such a level.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	entries := strings.Split(level, ",")

	if !strings.Contains(entries[0], "=") {
		if !validLogLevel(entries[0]) {
			return fmt.Errorf("invalid debug level %q", entries[0])
		}

		logger.SetLogLevels(entries[0])
		entries = entries[1:]
	}

	subLoggers := logger.SubLoggers()
	for _, entry := range entries {
		subsystem, subLevel, ok := strings.Cut(entry, "=")
		if !ok || strings.Contains(subLevel, "=") {
			return fmt.Errorf("invalid subsystem level %q, want "+
				"subsystem=level", entry)
		}

		if _, ok := subLoggers[subsystem]; !ok {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems are %v", subsystem,
				logger.SupportedSubsystems())
		}

		if !validLogLevel(subLevel) {
			return fmt.Errorf("invalid debug level %q for %s",
				subLevel, subsystem)
		}

		logger.SetLogLevel(subsystem, subLevel)
	}

	return nil
}

// validLogLevel reports whether btclog knows logLevel.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}
