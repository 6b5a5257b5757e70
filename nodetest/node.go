// Package nodetest provides an in-process bitcoind JSON-RPC server for tests.
// It serves a regtest chain that starts at the genesis block and grows with
// GenerateBlocks.
package nodetest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/corerpc/auth"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/stretchr/testify/require"
)

const (
	// DefaultUser is the rpc user of a node without a cookie.
	DefaultUser = "corerpc"

	// DefaultPass is the rpc password of a node without a cookie.
	DefaultPass = "corerpc"

	// cookieUser is the user name bitcoind writes to its cookie file.
	cookieUser = "__cookie__"
)

// HandlerFunc answers a single request. A non-nil error is returned to the
// caller as an RPC error.
type HandlerFunc func(params []json.RawMessage) (any, *btcjson.RPCError)

// config holds the settings applied by Option values.
type config struct {
	version    protocol.Version
	cookie     bool
	user, pass string
	noAuth     bool
}

// Option configures a Node.
type Option func(*config)

// WithVersion makes the node answer with the response shapes of v.
func WithVersion(v protocol.Version) Option {
	return func(c *config) {
		c.version = v
	}
}

// WithCookie makes the node authenticate with a freshly written cookie file
// instead of a static user and password.
func WithCookie() Option {
	return func(c *config) {
		c.cookie = true
	}
}

// WithUserPass sets the static rpc credentials.
func WithUserPass(user, pass string) Option {
	return func(c *config) {
		c.user = user
		c.pass = pass
	}
}

// WithoutAuth disables authentication.
func WithoutAuth() Option {
	return func(c *config) {
		c.noAuth = true
	}
}

// Node is a fake bitcoind. All methods are safe for concurrent use.
type Node struct {
	cfg        *config
	srv        *httptest.Server
	cookiePath string
	authHeader string

	calls atomic.Int64

	mu        sync.Mutex
	chain     *chain
	overrides map[string]HandlerFunc
	bodies    map[string][]byte
}

// New starts a node that is shut down when the test ends.
func New(t *testing.T, opts ...Option) *Node {
	t.Helper()

	cfg := &config{
		version: protocol.Latest,
		user:    DefaultUser,
		pass:    DefaultPass,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c, err := newChain(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	n := &Node{
		cfg:       cfg,
		chain:     c,
		overrides: make(map[string]HandlerFunc),
		bodies:    make(map[string][]byte),
	}

	credential := cfg.user + ":" + cfg.pass
	if cfg.cookie {
		var secret [32]byte
		copy(secret[:], chainhash.HashB([]byte(t.Name())))
		credential = fmt.Sprintf("%s:%x", cookieUser, secret)

		n.cookiePath = filepath.Join(t.TempDir(), ".cookie")
		require.NoError(t, os.WriteFile(
			n.cookiePath, []byte(credential), 0600,
		))
	}
	n.authHeader = "Basic " + base64.StdEncoding.EncodeToString(
		[]byte(credential),
	)

	n.srv = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.srv.Close)

	return n
}

// URL returns the address of the node.
func (n *Node) URL() string {
	return n.srv.URL
}

// Version returns the protocol version the node answers with.
func (n *Node) Version() protocol.Version {
	return n.cfg.version
}

// CookiePath returns the path of the cookie file, if the node uses one.
func (n *Node) CookiePath() string {
	return n.cookiePath
}

// Selector returns the credentials accepted by the node.
func (n *Node) Selector() auth.Selector {
	switch {
	case n.cfg.noAuth:
		return auth.None()

	case n.cfg.cookie:
		return auth.CookieFile(n.cookiePath)

	default:
		return auth.UserPass(n.cfg.user, n.cfg.pass)
	}
}

// Calls returns the number of HTTP requests the node received.
func (n *Node) Calls() int64 {
	return n.calls.Load()
}

// GenerateBlocks mines count blocks and returns their hashes.
func (n *Node) GenerateBlocks(t *testing.T, count int) []chainhash.Hash {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()

	hashes, err := n.generate(count)
	require.NoError(t, err)

	return hashes
}

func (n *Node) generate(count int) ([]chainhash.Hash, error) {
	hashes := make([]chainhash.Hash, 0, count)
	for i := 0; i < count; i++ {
		block, err := n.chain.mine()
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, block.BlockHash())
	}

	return hashes, nil
}

// SendTransaction adds tx to the mempool. It must spend known outputs.
func (n *Node) SendTransaction(t *testing.T, tx *wire.MsgTx) chainhash.Hash {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()

	txid, err := n.chain.addToMempool(tx)
	require.NoError(t, err)

	return txid
}

// Block returns the block at height.
func (n *Node) Block(height uint32) *wire.MsgBlock {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.chain.blocks[height]
}

// Tip returns the hash and height of the best block.
func (n *Node) Tip() (chainhash.Hash, uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.chain.tip().BlockHash(), n.chain.tipHeight()
}

// Override replaces the handler of method. The handler runs with the node
// locked and must not call back into it.
func (n *Node) Override(method string, handler HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.overrides[method] = handler
}

// OverrideResult makes method return result.
func (n *Node) OverrideResult(method string, result any) {
	n.Override(method, func([]json.RawMessage) (any, *btcjson.RPCError) {
		return result, nil
	})
}

// OverrideBody makes method answer with the raw HTTP body.
func (n *Node) OverrideBody(method string, body []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.bodies[method] = body
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)

	if !n.cfg.noAuth && r.Header.Get("Authorization") != n.authHeader {
		w.Header().Set("WWW-Authenticate", `Basic realm="jsonrpc"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req btcjson.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusInternalServerError, nil, nil,
			&btcjson.RPCError{
				Code:    btcjson.ErrRPCParse.Code,
				Message: "Parse error",
			})
		return
	}

	n.mu.Lock()
	body, ok := n.bodies[req.Method]
	n.mu.Unlock()
	if ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}

	result, rpcErr := n.dispatch(req.Method, req.Params)

	status := http.StatusOK
	switch {
	case rpcErr == nil:

	case rpcErr.Code == btcjson.ErrRPCMethodNotFound.Code:
		status = http.StatusNotFound

	default:
		status = http.StatusInternalServerError
	}

	writeResponse(w, status, req.ID, result, rpcErr)
}

func writeResponse(w http.ResponseWriter, status int, id, result any,
	rpcErr *btcjson.RPCError) {

	resp := struct {
		Result any               `json:"result"`
		Error  *btcjson.RPCError `json:"error"`
		ID     any               `json:"id"`
	}{
		Result: result,
		Error:  rpcErr,
		ID:     id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&resp)
}
