package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/lightningnetwork/corerpc/auth"
	"github.com/lightningnetwork/corerpc/rpcerr"
	"github.com/stretchr/testify/require"
)

// echoServer answers every request with handler's result or error and echoes
// the request id. The decoded request is sent on the returned channel.
func echoServer(t *testing.T, status int,
	handler func(req *btcjson.Request) (any, *btcjson.RPCError)) (
	*httptest.Server, chan *http.Request) {

	t.Helper()

	reqs := make(chan *http.Request, 16)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req btcjson.Request
			err := json.NewDecoder(r.Body).Decode(&req)
			require.NoError(t, err)

			reqs <- r

			result, rpcErr := handler(&req)
			resp := map[string]any{
				"result": result,
				"error":  rpcErr,
				"id":     req.ID,
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(resp)
		},
	))
	t.Cleanup(srv.Close)

	return srv, reqs
}

func rawParams(t *testing.T, args ...any) []json.RawMessage {
	t.Helper()

	params := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		require.NoError(t, err)
		params = append(params, b)
	}

	return params
}

// TestParseURL checks which server addresses are accepted.
func TestParseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url   string
		valid bool
	}{
		{"http://127.0.0.1:18443", true},
		{"https://node.example.com/", true},
		{"http://localhost:8332/wallet/w1", true},
		{"ftp://127.0.0.1:18443", false},
		{"127.0.0.1:18443", false},
		{"http://", false},
		{"", false},
		{"http://[::1", false},
	}

	for _, test := range tests {
		_, err := ParseURL(test.url)
		if test.valid {
			require.NoError(t, err, test.url)
			continue
		}

		require.ErrorIs(t, err, rpcerr.ErrInvalidURL, test.url)
	}
}

// TestBuilderErrors asserts that configuration errors surface from Build.
func TestBuilderErrors(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().Build()
	require.ErrorIs(t, err, rpcerr.ErrInvalidURL)

	_, err = NewBuilder().URL("gopher://x").BasicAuth("u", "p").Build()
	require.ErrorIs(t, err, rpcerr.ErrInvalidURL)

	tr, err := NewBuilder().URL("http://127.0.0.1:1").Timeout(0).Build()
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, tr.client.Timeout)

	tr, err = NewBuilder().URL("http://127.0.0.1:1").
		Timeout(time.Second).Build()
	require.NoError(t, err)
	require.Equal(t, time.Second, tr.client.Timeout)
}

// TestHTTPTransportRoundTrip sends a request and checks what reaches the
// server and what comes back.
func TestHTTPTransportRoundTrip(t *testing.T) {
	t.Parallel()

	gotReqs := make(chan *btcjson.Request, 1)
	srv, reqs := echoServer(t, http.StatusOK,
		func(req *btcjson.Request) (any, *btcjson.RPCError) {
			gotReqs <- req
			return "00ff", nil
		},
	)

	tr, err := NewBuilder().URL(srv.URL).CookieAuth("__cookie__:s3cr3t").
		Build()
	require.NoError(t, err)

	body, err := tr.SendRequest(
		context.Background(), "getblockhash", rawParams(t, 7),
	)
	require.NoError(t, err)

	httpReq := <-reqs
	require.Equal(t, http.MethodPost, httpReq.Method)
	require.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	require.Equal(
		t, "Basic "+base64.StdEncoding.EncodeToString(
			[]byte("__cookie__:s3cr3t"),
		), httpReq.Header.Get("Authorization"),
	)

	gotReq := <-gotReqs
	require.Equal(t, "getblockhash", gotReq.Method)
	require.EqualValues(t, "1.0", gotReq.Jsonrpc)
	require.Len(t, gotReq.Params, 1)
	require.JSONEq(t, "7", string(gotReq.Params[0]))

	var resp Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"00ff"`, string(resp.Result))
}

// TestHTTPTransportFreshIDs asserts that every request carries a new id and
// that nil params are sent as an empty array.
func TestHTTPTransportFreshIDs(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ids = make(map[any]struct{})
	)
	srv, _ := echoServer(t, http.StatusOK,
		func(req *btcjson.Request) (any, *btcjson.RPCError) {
			mu.Lock()
			ids[req.ID] = struct{}{}
			mu.Unlock()

			if req.Params == nil {
				return nil, &btcjson.RPCError{
					Code: -32602, Message: "null params",
				}
			}

			return 1, nil
		},
	)

	tr, err := NewBuilder().URL(srv.URL).BasicAuth("u", "p").Build()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		body, err := tr.SendRequest(
			context.Background(), "getblockcount", nil,
		)
		require.NoError(t, err)

		var resp Response
		require.NoError(t, json.Unmarshal(body, &resp))
		require.Nil(t, resp.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 5)
}

// TestHTTPTransportStatus covers how non-200 responses are reported.
func TestHTTPTransportStatus(t *testing.T) {
	t.Parallel()

	// A server error with a JSON body is passed through for the caller
	// to decode.
	srv, _ := echoServer(t, http.StatusInternalServerError,
		func(*btcjson.Request) (any, *btcjson.RPCError) {
			return nil, &btcjson.RPCError{
				Code:    btcjson.ErrRPCInvalidAddressOrKey,
				Message: "Block not found",
			}
		},
	)
	tr, err := NewBuilder().URL(srv.URL).BasicAuth("u", "p").Build()
	require.NoError(t, err)

	body, err := tr.SendRequest(context.Background(), "getblock", nil)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Error)
	require.EqualValues(t, -5, resp.Error.Code)

	// Authentication failures carry no body.
	for _, status := range []int{http.StatusUnauthorized,
		http.StatusForbidden, http.StatusServiceUnavailable} {

		status := status
		plain := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			},
		))
		t.Cleanup(plain.Close)

		tr, err := NewBuilder().URL(plain.URL).Build()
		require.NoError(t, err)

		_, err = tr.SendRequest(context.Background(), "getblock", nil)
		require.ErrorIs(t, err, rpcerr.ErrTransport)
	}
}

// TestHTTPTransportMalformed covers bodies that are not usable envelopes.
func TestHTTPTransportMalformed(t *testing.T) {
	t.Parallel()

	respond := func(body string) *HTTPTransport {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			},
		))
		t.Cleanup(srv.Close)

		tr, err := NewBuilder().URL(srv.URL).Build()
		require.NoError(t, err)

		return tr
	}

	_, err := respond("not json").SendRequest(
		context.Background(), "getblockcount", nil,
	)
	require.ErrorIs(t, err, rpcerr.ErrJSON)

	_, err = respond(`{"result":1,"error":null,"id":"other"}`).SendRequest(
		context.Background(), "getblockcount", nil,
	)
	require.ErrorIs(t, err, rpcerr.ErrInvalidResponse)
}

// TestHTTPTransportContext asserts that a cancelled context aborts the call.
func TestHTTPTransportContext(t *testing.T) {
	t.Parallel()

	srv, _ := echoServer(t, http.StatusOK,
		func(*btcjson.Request) (any, *btcjson.RPCError) {
			return 1, nil
		},
	)
	tr, err := NewBuilder().URL(srv.URL).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = tr.SendRequest(ctx, "getblockcount", nil)
	require.ErrorIs(t, err, rpcerr.ErrTransport)
	require.ErrorIs(t, err, context.Canceled)
}

// TestRPCClientTransport drives the rpcclient adapter against a fake server.
func TestRPCClientTransport(t *testing.T) {
	t.Parallel()

	srv, reqs := echoServer(t, http.StatusOK,
		func(req *btcjson.Request) (any, *btcjson.RPCError) {
			if req.Method == "getrawtransaction" {
				return nil, &btcjson.RPCError{
					Code:    btcjson.ErrRPCNoTxInfo,
					Message: "No such mempool or blockchain transaction",
				}
			}

			return 101, nil
		},
	)

	creds, err := auth.Resolve(
		auth.UserPass("alice", "hunter2"), auth.PolicyRequired,
		auth.StrategyUserPass,
	)
	require.NoError(t, err)

	cfg, err := NewConnConfig(srv.URL, creds)
	require.NoError(t, err)
	require.True(t, cfg.DisableTLS)
	require.Equal(t, "alice", cfg.User)

	tr, err := NewRPCClientTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	body, err := tr.SendRequest(context.Background(), "getblockcount", nil)
	require.NoError(t, err)

	httpReq := <-reqs
	user, pass, ok := httpReq.BasicAuth()
	require.True(t, ok)
	require.Equal(t, "alice", user)
	require.Equal(t, "hunter2", pass)

	var resp Response
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Nil(t, resp.Error)
	require.JSONEq(t, "101", string(resp.Result))

	body, err = tr.SendRequest(
		context.Background(), "getrawtransaction", rawParams(t, "00"),
	)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Error)
	require.EqualValues(t, btcjson.ErrRPCNoTxInfo, resp.Error.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.SendRequest(ctx, "getblockcount", nil)
	require.ErrorIs(t, err, rpcerr.ErrTransport)

	// The node root is addressed without a path.
	require.Equal(t, "/", (<-reqs).URL.Path)

	// A wallet endpoint keeps its path.
	walletURL := srv.URL + "/wallet/w1"
	cfg, err = NewConnConfig(walletURL, creds)
	require.NoError(t, err)
	require.Equal(t, strings.TrimPrefix(walletURL, "http://"), cfg.Host)

	walletTr, err := NewRPCClientTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = walletTr.Close() })

	_, err = walletTr.SendRequest(
		context.Background(), "getblockcount", nil,
	)
	require.NoError(t, err)
	require.Equal(t, "/wallet/w1", (<-reqs).URL.Path)
}
