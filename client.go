// Package corerpc is a typed client for the JSON-RPC interface of bitcoind.
// Results of verbose calls are converted by a protocol.Modeler chosen for the
// node's major version, so callers always receive the types of package model.
package corerpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/corerpc/auth"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/lightningnetwork/corerpc/rpcerr"
	"github.com/lightningnetwork/corerpc/transport"
)

// clientConfig holds the settings applied by Option values.
type clientConfig struct {
	timeout      time.Duration
	version      protocol.Version
	policy       auth.Policy
	useRPCClient bool
	httpClient   *http.Client
	wrap         func(transport.Transport) transport.Transport
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		timeout: transport.DefaultTimeout,
		version: protocol.Latest,
		policy:  auth.PolicyRequired,
	}
}

// Option configures a Client.
type Option func(*clientConfig)

// WithTimeout sets the timeout of a single round trip of the HTTP transport.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithVersion selects the response shapes of the given node version. The
// default is protocol.Latest.
func WithVersion(v protocol.Version) Option {
	return func(c *clientConfig) {
		c.version = v
	}
}

// WithAuthPolicy sets whether NewWithAuth accepts auth.None(). The default is
// auth.PolicyRequired.
func WithAuthPolicy(policy auth.Policy) Option {
	return func(c *clientConfig) {
		c.policy = policy
	}
}

// WithRPCClientTransport makes NewWithAuth send requests through btcd's
// rpcclient instead of the native HTTP transport. Cookie files are then split
// into a username and password.
func WithRPCClientTransport() Option {
	return func(c *clientConfig) {
		c.useRPCClient = true
	}
}

// WithHTTPClient sets the HTTP client of the native HTTP transport, for
// example to configure TLS.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTransportWrapper decorates the transport built by NewWithAuth, for
// example with monitoring.
func WithTransportWrapper(
	wrap func(transport.Transport) transport.Transport) Option {

	return func(c *clientConfig) {
		c.wrap = wrap
	}
}

// Client issues typed RPC calls over a single transport. It holds no other
// state and is safe for concurrent use if its transport is.
type Client struct {
	transport transport.Transport
	modeler   protocol.Modeler
}

// NewWithAuth creates a client for the server at rawURL authenticated by
// sel. Credentials are resolved once, here. A missing credential under
// auth.PolicyRequired is rejected before any network activity.
func NewWithAuth(rawURL string, sel auth.Selector,
	opts ...Option) (*Client, error) {

	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	modeler, err := protocol.ForVersion(cfg.version)
	if err != nil {
		return nil, err
	}

	if _, err := transport.ParseURL(rawURL); err != nil {
		return nil, err
	}

	var t transport.Transport
	if cfg.useRPCClient {
		t, err = newRPCClientTransport(rawURL, sel, cfg)
	} else {
		t, err = newHTTPTransport(rawURL, sel, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.wrap != nil {
		t = cfg.wrap(t)
	}

	log.Tracef("Created %v client for %v with %v credentials",
		modeler.Version(), rawURL, sel.Kind())

	return &Client{
		transport: t,
		modeler:   modeler,
	}, nil
}

func newHTTPTransport(rawURL string, sel auth.Selector,
	cfg *clientConfig) (transport.Transport, error) {

	creds, err := auth.Resolve(sel, cfg.policy, auth.StrategyToken)
	if err != nil {
		return nil, err
	}

	builder := transport.NewBuilder().URL(rawURL).Timeout(cfg.timeout)
	creds.Token.WhenSome(func(token string) {
		builder.CookieAuth(token)
	})
	if cfg.httpClient != nil {
		builder.HTTPClient(cfg.httpClient)
	}

	return builder.Build()
}

func newRPCClientTransport(rawURL string, sel auth.Selector,
	cfg *clientConfig) (transport.Transport, error) {

	creds, err := auth.Resolve(sel, cfg.policy, auth.StrategyUserPass)
	if err != nil {
		return nil, err
	}

	connCfg, err := transport.NewConnConfig(rawURL, creds)
	if err != nil {
		return nil, err
	}

	return transport.NewRPCClientTransport(connCfg)
}

// NewWithTransport creates a client that sends its requests through t. Only
// WithVersion applies.
func NewWithTransport(t transport.Transport, opts ...Option) (*Client,
	error) {

	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	modeler, err := protocol.ForVersion(cfg.version)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: t,
		modeler:   modeler,
	}, nil
}

// Version returns the protocol version whose response shapes the client
// expects.
func (c *Client) Version() protocol.Version {
	return c.modeler.Version()
}

// WithVersion returns a client sharing c's transport that expects the
// response shapes of v.
func (c *Client) WithVersion(v protocol.Version) (*Client, error) {
	modeler, err := protocol.ForVersion(v)
	if err != nil {
		return nil, err
	}

	return &Client{
		transport: c.transport,
		modeler:   modeler,
	}, nil
}

// Close releases the resources of the transport, if it holds any.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// Call issues method with the given positional arguments and decodes the
// result into T. It is the building block of every typed method and can be
// used for calls that have none.
func Call[T any](ctx context.Context, c *Client, method string,
	args ...any) (T, error) {

	var result T
	if err := c.call(ctx, method, &result, args...); err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// call issues method and decodes its result into result, which must be a
// pointer.
func (c *Client) call(ctx context.Context, method string, result any,
	args ...any) error {

	params := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		param, err := json.Marshal(arg)
		if err != nil {
			return rpcerr.Wrapf(rpcerr.KindJSON, err,
				"%s: argument %d", method, i)
		}

		params = append(params, param)
	}

	log.Tracef("Calling %v with %d params", method, len(params))

	resp, err := c.transport.SendRequest(ctx, method, params)
	if err != nil {
		var rErr *rpcerr.Error
		if errors.As(err, &rErr) {
			return err
		}

		return rpcerr.Wrap(rpcerr.KindTransport, err, method)
	}

	var envelope transport.Response
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return rpcerr.Wrap(rpcerr.KindJSON, err, method)
	}

	if envelope.Error != nil {
		return rpcerr.NewRPCError(
			method, int64(envelope.Error.Code),
			envelope.Error.Message,
		)
	}

	if envelope.Result == nil {
		return rpcerr.Newf(rpcerr.KindInvalidResponse,
			"%s: response has neither result nor error", method)
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return rpcerr.Wrap(rpcerr.KindJSON, err, method)
	}

	log.Tracef("Result of %v: %v", method, newLogClosure(func() string {
		return spew.Sdump(result)
	}))

	return nil
}
