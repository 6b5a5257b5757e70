package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lightningnetwork/corerpc/nodetest"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/lightningnetwork/corerpc/rpccfg"
	"github.com/stretchr/testify/require"
)

// runApp runs the application against node with the given command line.
func runApp(t *testing.T, node *nodetest.Node, args ...string) error {
	t.Helper()

	confPath := filepath.Join(t.TempDir(), "corerpc.conf")
	require.NoError(t, os.WriteFile(confPath, nil, 0600))

	argv := []string{
		"corerpcctl",
		"--configfile=" + confPath,
		"--nologfile",
		"--rpchost=" + node.URL(),
		"--rpccookie=" + node.CookiePath(),
	}

	return newApp().Run(append(argv, args...))
}

// TestCommands runs every command against a node of each version, relying on
// version detection.
func TestCommands(t *testing.T) {
	for _, v := range protocol.Versions() {
		t.Run(v.String(), func(t *testing.T) {
			node := nodetest.New(
				t, nodetest.WithVersion(v), nodetest.WithCookie(),
			)
			hashes := node.GenerateBlocks(t, 3)
			tip := hashes[len(hashes)-1].String()

			commands := [][]string{
				{"getbestblockhash"},
				{"getblockcount"},
				{"getblockhash", "2"},
				{"getblock", tip},
				{"getblock", "--verbose", tip},
				{"getblockheader", tip},
				{"getblockheader", "--verbose", tip},
				{"getblockfilter", tip, "51"},
				{"getrawmempool"},
				{"getrawmempool", "--json"},
				{"detectversion"},
				{"call", "getblockcount"},
				{"call", "getblockhash", "1"},
			}
			for _, cmd := range commands {
				require.NoError(t, runApp(t, node, cmd...), cmd)
			}
		})
	}
}

// TestCommandErrors checks failures are returned by the application.
func TestCommandErrors(t *testing.T) {
	node := nodetest.New(t, nodetest.WithCookie())

	// A missing explicit configuration file is an error.
	err := newApp().Run([]string{
		"corerpcctl", "--configfile=/does/not/exist.conf",
		"getblockcount",
	})
	require.Error(t, err)

	// Invalid hashes are rejected before connecting.
	require.Error(t, runApp(t, node, "getblock", "zz"))
	require.Zero(t, node.Calls())

	// Unknown methods are reported by the node.
	require.Error(t, runApp(t, node, "call", "nosuchmethod"))

	// A pinned version that does not match the node fails to decode.
	require.Error(t, runApp(
		t, node, "--nodeversion=28", "getblockheader", "--verbose",
		node.Block(0).BlockHash().String(),
	))

	// Wrong credentials are rejected by the node.
	require.Error(t, runApp(
		t, node, "--rpccookie="+filepath.Join(t.TempDir(), "none"),
		"getblockcount",
	))
}

// TestVersionsCommand checks the command works without a node.
func TestVersionsCommand(t *testing.T) {
	require.NoError(t, newApp().Run([]string{"corerpcctl", "versions"}))
}

// TestLogFile asserts that log lines reach the rotating log file through the
// console writer.
func TestLogFile(t *testing.T) {
	cfg := rpccfg.DefaultConfig()
	cfg.LogDir = t.TempDir()
	cfg.DebugLevel = "info"

	mgr, err := setupLoggers(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logWriter.Close() })
	require.Contains(t, mgr.SupportedSubsystems(), subsystem)

	log.Infof("log file marker")

	require.Eventually(t, func() bool {
		content, err := os.ReadFile(cfg.LogFilePath())
		if err != nil {
			return false
		}

		return strings.Contains(string(content), "log file marker")
	}, 5*time.Second, 10*time.Millisecond)
}

// TestFlagArgs asserts that every mapped flag is a global flag of the tool.
func TestFlagArgs(t *testing.T) {
	names := make(map[string]struct{})
	for _, flag := range newApp().Flags {
		name, _, _ := strings.Cut(flag.GetName(), ",")
		names[name] = struct{}{}
	}

	for _, args := range []map[string]string{flagArgs, boolFlagArgs} {
		for flag, option := range args {
			require.Contains(t, names, flag)
			require.NotEmpty(t, option, flag)
		}
	}
}
