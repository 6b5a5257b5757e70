package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/lightningnetwork/corerpc/auth"
	"github.com/lightningnetwork/corerpc/rpcerr"
)

// NewConnConfig builds an rpcclient configuration for the server at rawURL,
// authenticated with the given user and password credentials.
func NewConnConfig(rawURL string,
	creds *auth.Credentials) (*rpcclient.ConnConfig, error) {

	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	// rpcclient appends Host to the scheme verbatim, so a wallet path
	// survives as part of it.
	cfg := &rpcclient.ConnConfig{
		Host:       u.Host + u.Path,
		DisableTLS: u.Scheme == "http",
	}
	if creds != nil {
		cfg.User = creds.User.UnwrapOr("")
		cfg.Pass = creds.Pass.UnwrapOr("")
	}

	return cfg, nil
}

// RPCClientTransport sends requests through a btcd rpcclient in HTTP POST
// mode.
type RPCClientTransport struct {
	client *rpcclient.Client
}

// A compile time check to ensure RPCClientTransport implements the Transport
// interface.
var _ Transport = (*RPCClientTransport)(nil)

// NewRPCClientTransport creates an rpcclient backed transport. The
// configuration is always switched to HTTP POST mode; bitcoind does not offer
// websockets.
func NewRPCClientTransport(
	cfg *rpcclient.ConnConfig) (*RPCClientTransport, error) {

	connCfg := *cfg
	connCfg.HTTPPostMode = true
	connCfg.DisableConnectOnNew = true

	client, err := rpcclient.New(&connCfg, nil)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindTransport, err,
			"unable to create rpcclient")
	}

	return &RPCClientTransport{
		client: client,
	}, nil
}

// SendRequest issues a raw request and re-assembles the response envelope.
// rpcclient takes no context, so ctx is only checked before sending.
//
// NOTE: This is part of the Transport interface.
func (t *RPCClientTransport) SendRequest(ctx context.Context, method string,
	params []json.RawMessage) ([]byte, error) {

	if err := ctx.Err(); err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindTransport, err, method)
	}

	log.Tracef("Sending %v request via rpcclient", method)

	result, err := t.client.RawRequest(method, params)

	var envelope Response
	switch {
	case err == nil:
		envelope.Result = result
		if envelope.Result == nil {
			envelope.Result = json.RawMessage("null")
		}

	default:
		var rpcErr *btcjson.RPCError
		if !errors.As(err, &rpcErr) {
			return nil, rpcerr.Wrap(rpcerr.KindTransport, err, method)
		}

		envelope.Error = rpcErr
	}

	envelope.ID = json.RawMessage("null")

	resp, err := json.Marshal(&envelope)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindJSON, err, method)
	}

	return resp, nil
}

// Close shuts the underlying rpcclient down.
func (t *RPCClientTransport) Close() error {
	t.client.Shutdown()

	return nil
}
