package transport

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/lightningnetwork/corerpc/rpcerr"
)

// rpcVersion is the JSON-RPC version advertised in every request. bitcoind
// accepts 1.0 style requests on all supported releases.
const rpcVersion = "1.0"

// Transport sends a single JSON-RPC request and returns the raw response
// envelope. Implementations must not retry.
type Transport interface {
	// SendRequest sends method with the already encoded positional
	// params. The returned bytes are a {result, error, id} envelope.
	// Failures that happen before an envelope is available are returned
	// as errors.
	SendRequest(ctx context.Context, method string,
		params []json.RawMessage) ([]byte, error)
}

// Response is the JSON-RPC response envelope returned by bitcoind.
type Response struct {
	// Result is the raw result. It is nil if the field was absent and the
	// JSON literal null if it was present but empty.
	Result json.RawMessage `json:"result"`

	// Error is set if the server rejected the call.
	Error *btcjson.RPCError `json:"error"`

	// ID echoes the id of the request.
	ID json.RawMessage `json:"id"`
}

// ParseURL validates the address of a bitcoind RPC server. Only http and
// https URLs with a host are accepted.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindInvalidURL, err, rawURL)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return nil, rpcerr.Newf(rpcerr.KindInvalidURL,
			"%s: unsupported scheme %q", rawURL, u.Scheme)
	}

	if u.Host == "" {
		return nil, rpcerr.Newf(rpcerr.KindInvalidURL, "%s: missing host",
			rawURL)
	}

	return u, nil
}

// newRequest builds the request envelope for method. A nil params slice is
// sent as an empty array.
func newRequest(id any, method string,
	params []json.RawMessage) *btcjson.Request {

	if params == nil {
		params = []json.RawMessage{}
	}

	return &btcjson.Request{
		Jsonrpc: rpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}
