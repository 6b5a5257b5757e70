package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"

	"github.com/lightningnetwork/corerpc"
	"github.com/lightningnetwork/corerpc/build"
	"github.com/lightningnetwork/corerpc/monitoring"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/lightningnetwork/corerpc/rpccfg"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

// appVersion is the version of the tool.
const appVersion = "0.1.0"

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[corerpcctl] %v\n", err)
	os.Exit(1)
}

// flagArgs maps the global flags of the tool to the options of the
// configuration. Flags that are set are passed on as command line arguments so
// that they override the configuration file.
var flagArgs = map[string]string{
	"configfile":  "configfile",
	"debuglevel":  "debuglevel",
	"logdir":      "logdir",
	"bitcoinddir": "bitcoind.dir",
	"chain":       "bitcoind.chain",
	"rpchost":     "bitcoind.rpchost",
	"rpcuser":     "bitcoind.rpcuser",
	"rpcpass":     "bitcoind.rpcpass",
	"rpccookie":   "bitcoind.rpccookie",
	"nodeversion": "bitcoind.version",
	"transport":   "bitcoind.transport",
	"timeout":     "bitcoind.timeout",
	"metrics":     "prometheus.listen",
}

var boolFlagArgs = map[string]string{
	"allow-no-auth":  "bitcoind.allow-no-auth",
	"nologfile":      "logfile.disable",
	"perfhistograms": "prometheus.perfhistograms",
}

// loadConfig builds the configuration from the configuration file and the
// global flags that were set.
func loadConfig(ctx *cli.Context) (*rpccfg.Config, error) {
	var args []string
	for flag, option := range flagArgs {
		if !ctx.GlobalIsSet(flag) {
			continue
		}

		args = append(args, fmt.Sprintf(
			"--%s=%s", option, ctx.GlobalString(flag),
		))
	}

	for flag, option := range boolFlagArgs {
		if ctx.GlobalBool(flag) {
			args = append(args, "--"+option)
		}
	}

	if ctx.GlobalIsSet("metrics") {
		args = append(args, "--prometheus.enable")
	}

	// Ask for the password of an explicit user if it was not given and
	// there is someone to ask.
	if ctx.GlobalIsSet("rpcuser") && !ctx.GlobalIsSet("rpcpass") &&
		term.IsTerminal(int(syscall.Stdin)) { // nolint:unconvert

		pass, err := readPassword("RPC password: ")
		if err != nil {
			return nil, err
		}

		args = append(args, "--bitcoind.rpcpass="+string(pass))
	}

	return rpccfg.LoadConfig(args)
}

// getClient creates a client for the configured node. If no version is
// configured, the node is asked for its version first. The returned cleanup
// closure closes the client and shuts down the metrics exporter.
func getClient(ctx *cli.Context) (*corerpc.Client, func(), error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	if _, err := setupLoggers(cfg); err != nil {
		return nil, nil, err
	}

	url, err := cfg.Bitcoind.URL()
	if err != nil {
		return nil, nil, err
	}

	opts := []corerpc.Option{
		corerpc.WithTimeout(cfg.Bitcoind.Timeout),
		corerpc.WithAuthPolicy(cfg.Bitcoind.Policy()),
	}
	if cfg.Bitcoind.Transport == rpccfg.TransportRPCClient {
		opts = append(opts, corerpc.WithRPCClientTransport())
	}

	var server *http.Server
	if cfg.Prometheus.Enabled() {
		registry := prometheus.NewRegistry()
		metrics, err := monitoring.NewMetrics(
			registry, cfg.Prometheus.PerfHistograms,
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, corerpc.WithTransportWrapper(metrics.Wrap))

		server, err = monitoring.ExportPrometheusMetrics(
			cfg.Prometheus, registry,
		)
		if err != nil {
			return nil, nil, err
		}
	}

	client, err := corerpc.NewWithAuth(
		url, cfg.Bitcoind.Selector(), opts...,
	)
	if err != nil {
		if server != nil {
			_ = server.Close()
		}

		return nil, nil, err
	}

	cleanUp := func() {
		if err := client.Close(); err != nil {
			log.Errorf("Unable to close client: %v", err)
		}

		if server != nil {
			_ = server.Close()
		}

		_ = logWriter.Close()
	}

	version, err := cfg.Bitcoind.ProtocolVersion()
	if err != nil {
		cleanUp()
		return nil, nil, err
	}

	if version.IsNone() {
		detected, err := client.DetectVersion(context.Background())
		if err != nil {
			cleanUp()
			return nil, nil, fmt.Errorf("unable to detect node "+
				"version: %w", err)
		}

		log.Debugf("Detected node version %v", detected)
		version = fn.Some(detected)
	}

	client, err = client.WithVersion(version.UnwrapOr(protocol.Latest))
	if err != nil {
		cleanUp()
		return nil, nil, err
	}

	return client, cleanUp, nil
}

// newApp returns the command line application.
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "corerpcctl"
	app.Version = fmt.Sprintf("%s (%v build)", appVersion, build.Deployment)
	app.Usage = "typed queries against a bitcoind RPC server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "configfile, C",
			Value:     rpccfg.DefaultConfigFile,
			Usage:     "The path to the configuration file.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "debuglevel, d",
			Usage: "Logging level for all subsystems, or " +
				"<subsystem>=<level> pairs.",
		},
		cli.StringFlag{
			Name:      "logdir",
			Usage:     "The directory to write the log file to.",
			TakesFile: true,
		},
		cli.BoolFlag{
			Name:  "nologfile",
			Usage: "Do not write a log file.",
		},
		cli.StringFlag{
			Name:      "bitcoinddir",
			Usage:     "The path to bitcoind's base directory.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "chain, n",
			Usage: "The network bitcoind is running on, e.g. " +
				"mainnet, testnet, testnet4, signet or regtest.",
		},
		cli.StringFlag{
			Name: "rpchost",
			Usage: "The host[:port] or http(s) URL of bitcoind's " +
				"RPC server.",
		},
		cli.StringFlag{
			Name:  "rpcuser",
			Usage: "The RPC username.",
		},
		cli.StringFlag{
			Name:  "rpcpass",
			Usage: "The RPC password.",
		},
		cli.StringFlag{
			Name:      "rpccookie",
			Usage:     "The path to bitcoind's cookie file.",
			TakesFile: true,
		},
		cli.BoolFlag{
			Name:  "allow-no-auth",
			Usage: "Connect without credentials.",
		},
		cli.StringFlag{
			Name: "nodeversion",
			Usage: "The major version of bitcoind, e.g. 29, or " +
				"'auto' to ask the node.",
		},
		cli.StringFlag{
			Name:  "transport",
			Usage: "The transport to use, 'http' or 'rpcclient'.",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "The timeout of a single RPC round trip.",
		},
		cli.StringFlag{
			Name: "metrics",
			Usage: "Export Prometheus metrics of the session on " +
				"this host:port.",
		},
		cli.BoolFlag{
			Name:  "perfhistograms",
			Usage: "Export a latency histogram per RPC method.",
		},
	}
	app.Commands = []cli.Command{
		getBestBlockHashCommand,
		getBlockCountCommand,
		getBlockHashCommand,
		getBlockCommand,
		getBlockHeaderCommand,
		getBlockFilterCommand,
		getRawMempoolCommand,
		getRawTransactionCommand,
		detectVersionCommand,
		callCommand,
		versionsCommand,
	}

	return app
}

// readPassword reads a password from the terminal. This requires there to be an
// actual TTY so passing in a password from stdin won't work.
func readPassword(text string) ([]byte, error) {
	fmt.Fprint(os.Stderr, text)

	// The variable syscall.Stdin is of a different type in the Windows API
	// that's why we need the explicit cast.
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)

	return pw, err
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
