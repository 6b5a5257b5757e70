// Package rpccfg holds the configuration of a connection to bitcoind and of
// the tools built around it.
package rpccfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/corerpc/build"
)

const (
	defaultConfigFilename = "corerpc.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "corerpc.log"
	defaultLogLevel       = "info"
)

var (
	// DefaultAppDir is the default directory of configuration and logs.
	DefaultAppDir = btcutil.AppDataDir("corerpc", false)

	// DefaultConfigFile is the default configuration file.
	DefaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)

	defaultLogDir = filepath.Join(DefaultAppDir, defaultLogDirname)
)

// Config is the complete configuration.
//
//nolint:lll
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	LogFile    *build.FileLoggerConfig `group:"logfile" namespace:"logfile"`
	Bitcoind   *Bitcoind               `group:"bitcoind" namespace:"bitcoind"`
	Prometheus *Prometheus             `group:"prometheus" namespace:"prometheus"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ConfigFile: DefaultConfigFile,
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
		LogFile:    build.DefaultFileLoggerConfig(),
		Bitcoind:   DefaultBitcoind(),
		Prometheus: DefaultPrometheus(),
	}
}

// LogFilePath returns the path of the log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if !c.LogFile.Disable {
		if err := c.LogFile.Validate(); err != nil {
			return err
		}
	}

	if err := c.Bitcoind.Validate(); err != nil {
		return fmt.Errorf("bitcoind: %w", err)
	}

	if err := c.Prometheus.Validate(); err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}

	return nil
}

// LoadConfig builds the configuration from the defaults, the configuration
// file and finally the command line arguments, in that order of precedence.
// A missing configuration file is only an error if it was set explicitly.
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line to find the configuration file.
	preCfg := DefaultConfig()
	preParser := flags.NewParser(preCfg, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.ConfigFile = preCfg.ConfigFile

	parser := flags.NewParser(cfg, flags.Default&^flags.PrintErrors)
	err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	switch {
	case err == nil:

	case errors.Is(err, os.ErrNotExist) &&
		cfg.ConfigFile == DefaultConfigFile:

	default:
		return nil, fmt.Errorf("unable to load config file %v: %w",
			cfg.ConfigFile, err)
	}

	// The command line overrides the configuration file.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.Bitcoind.Dir = cleanAndExpandPath(cfg.Bitcoind.Dir)
	cfg.Bitcoind.RPCCookie = cleanAndExpandPath(cfg.Bitcoind.RPCCookie)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// cleanAndExpandPath expands a leading ~ and environment variables and cleans
// the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
