package rpccfg

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/corerpc/auth"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/lightningnetwork/corerpc/transport"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	defaultBitcoindDir = btcutil.AppDataDir("bitcoin", false)
)

const (
	defaultRPCHost = "localhost"
	defaultChain   = "mainnet"

	// VersionAuto asks the node for its version.
	VersionAuto = "auto"

	// TransportHTTP selects the native HTTP transport.
	TransportHTTP = "http"

	// TransportRPCClient selects btcd's rpcclient.
	TransportRPCClient = "rpcclient"

	cookieFileName = ".cookie"
)

// chainInfo holds the per network defaults of bitcoind.
type chainInfo struct {
	params  *chaincfg.Params
	rpcPort string

	// dataSubDir is the directory bitcoind keeps the network's data, and
	// its cookie, in.
	dataSubDir string
}

var chains = map[string]chainInfo{
	"mainnet":  {&chaincfg.MainNetParams, "8332", ""},
	"testnet":  {&chaincfg.TestNet3Params, "18332", "testnet3"},
	"testnet4": {&chaincfg.TestNet4Params, "48332", "testnet4"},
	"signet":   {&chaincfg.SigNetParams, "38332", "signet"},
	"regtest":  {&chaincfg.RegressionNetParams, "18443", "regtest"},
}

// Bitcoind holds the options of the connection to bitcoind.
//
//nolint:lll
type Bitcoind struct {
	Dir         string        `long:"dir" description:"The base directory that contains the node's data, logs, configuration file, etc."`
	Chain       string        `long:"chain" description:"The network the node runs on." choice:"mainnet" choice:"testnet" choice:"testnet4" choice:"signet" choice:"regtest"`
	RPCCookie   string        `long:"rpccookie" description:"Authentication cookie file for RPC connections. If not set, will default to .cookie under 'dir' and the chain's sub directory."`
	RPCHost     string        `long:"rpchost" description:"The daemon's rpc listening address, or a full http(s) URL. If a port is omitted, then the default port for the selected chain will be used."`
	RPCUser     string        `long:"rpcuser" description:"Username for RPC connections"`
	RPCPass     string        `long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	AllowNoAuth bool          `long:"allow-no-auth" description:"Connect without credentials if neither rpcuser nor rpccookie are set."`
	Timeout     time.Duration `long:"timeout" description:"The timeout of a single RPC round trip."`
	Version     string        `long:"version" description:"The major version of the node, such as 29, or 'auto' to ask the node."`
	Transport   string        `long:"transport" description:"The transport used to talk to the node." choice:"http" choice:"rpcclient"`
}

// DefaultBitcoind returns the default connection options.
func DefaultBitcoind() *Bitcoind {
	return &Bitcoind{
		Dir:       defaultBitcoindDir,
		Chain:     defaultChain,
		RPCHost:   defaultRPCHost,
		Timeout:   transport.DefaultTimeout,
		Version:   VersionAuto,
		Transport: TransportHTTP,
	}
}

// Validate checks the options for consistency.
func (b *Bitcoind) Validate() error {
	if _, ok := chains[b.Chain]; !ok {
		return fmt.Errorf("unknown chain %q", b.Chain)
	}

	if (b.RPCUser == "") != (b.RPCPass == "") {
		return errors.New("rpcuser and rpcpass must be set together")
	}

	if b.RPCUser != "" && b.RPCCookie != "" {
		return errors.New("rpcuser and rpccookie are mutually " +
			"exclusive")
	}

	if b.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v",
			b.Timeout)
	}

	switch b.Transport {
	case TransportHTTP, TransportRPCClient:
	default:
		return fmt.Errorf("unknown transport %q", b.Transport)
	}

	if _, err := b.ProtocolVersion(); err != nil {
		return err
	}

	if _, err := b.URL(); err != nil {
		return err
	}

	return nil
}

// Params returns the chain parameters of the configured network.
func (b *Bitcoind) Params() (*chaincfg.Params, error) {
	info, ok := chains[b.Chain]
	if !ok {
		return nil, fmt.Errorf("unknown chain %q", b.Chain)
	}

	return info.params, nil
}

// URL returns the address of the RPC server. A host without a port gets the
// chain's default RPC port.
func (b *Bitcoind) URL() (string, error) {
	if strings.HasPrefix(b.RPCHost, "http://") ||
		strings.HasPrefix(b.RPCHost, "https://") {

		u, err := transport.ParseURL(b.RPCHost)
		if err != nil {
			return "", err
		}

		return u.String(), nil
	}

	info, ok := chains[b.Chain]
	if !ok {
		return "", fmt.Errorf("unknown chain %q", b.Chain)
	}

	host := b.RPCHost
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, info.rpcPort)
	}

	u, err := transport.ParseURL("http://" + host)
	if err != nil {
		return "", err
	}

	return u.String(), nil
}

// CookiePath returns the configured cookie file, or the one bitcoind writes
// for the configured chain.
func (b *Bitcoind) CookiePath() string {
	if b.RPCCookie != "" {
		return b.RPCCookie
	}

	return filepath.Join(b.Dir, chains[b.Chain].dataSubDir, cookieFileName)
}

// Selector returns the credentials to connect with. Explicit credentials win
// over an explicit cookie, which wins over connecting without credentials if
// that is allowed. The chain's default cookie is the fallback.
func (b *Bitcoind) Selector() auth.Selector {
	switch {
	case b.RPCUser != "":
		return auth.UserPass(b.RPCUser, b.RPCPass)

	case b.RPCCookie != "":
		return auth.CookieFile(b.RPCCookie)

	case b.AllowNoAuth:
		return auth.None()

	default:
		return auth.CookieFile(b.CookiePath())
	}
}

// Policy returns whether connecting without credentials is allowed.
func (b *Bitcoind) Policy() auth.Policy {
	if b.AllowNoAuth {
		return auth.PolicyOptional
	}

	return auth.PolicyRequired
}

// ProtocolVersion returns the configured version, or None if it should be
// detected.
func (b *Bitcoind) ProtocolVersion() (fn.Option[protocol.Version], error) {
	if b.Version == "" || b.Version == VersionAuto {
		return fn.None[protocol.Version](), nil
	}

	v, err := protocol.ParseVersion(b.Version)
	if err != nil {
		return fn.None[protocol.Version](), err
	}

	return fn.Some(v), nil
}
