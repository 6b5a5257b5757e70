package main

import (
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/corerpc"
	"github.com/lightningnetwork/corerpc/build"
	"github.com/lightningnetwork/corerpc/monitoring"
	"github.com/lightningnetwork/corerpc/rpccfg"
	"github.com/lightningnetwork/corerpc/transport"
)

// subsystem is the logging code of the command line tool itself.
const subsystem = "CTL"

var (
	// log is the tool's own logger. It is disabled until setupLoggers
	// runs.
	log = btclog.Disabled

	// logWriter receives the log output that goes to the log file.
	logWriter = build.NewRotatingLogWriter()
)

// setupLoggers creates a logger for every subsystem on a backend that writes
// to stderr and, unless disabled, the rotating log file. The debug level is
// then applied to all of them.
func setupLoggers(cfg *rpccfg.Config) (*build.SubLoggerManager, error) {
	console := &build.LogWriter{}
	if !cfg.LogFile.Disable {
		err := logWriter.InitLogRotator(cfg.LogFile, cfg.LogFilePath())
		if err != nil {
			return nil, err
		}

		console.RotatorPipe = logWriter
	}

	mgr := build.NewSubLoggerManager(console)

	log = build.NewSubLogger(subsystem, mgr.GenSubLogger)
	corerpc.UseLogger(build.NewSubLogger(
		corerpc.Subsystem, mgr.GenSubLogger,
	))
	transport.UseLogger(build.NewSubLogger(
		transport.Subsystem, mgr.GenSubLogger,
	))
	monitoring.UseLogger(build.NewSubLogger(
		monitoring.Subsystem, mgr.GenSubLogger,
	))

	err := build.ParseAndSetDebugLevels(cfg.DebugLevel, mgr)
	if err != nil {
		return nil, err
	}

	return mgr, nil
}
