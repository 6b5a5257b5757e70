package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/corerpc/rpcerr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultTimeout is the request timeout used when none is configured.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize bounds the size of a response body. The largest
	// responses are hex encoded blocks, which stay well below this.
	maxResponseSize = 64 << 20
)

// Builder collects the settings of an HTTP transport. Errors are sticky and
// reported by Build.
type Builder struct {
	url        *url.URL
	timeout    time.Duration
	authHeader fn.Option[string]
	httpClient *http.Client
	err        error
}

// NewBuilder returns a builder with the default timeout and no credentials.
func NewBuilder() *Builder {
	return &Builder{
		timeout: DefaultTimeout,
	}
}

// URL sets the address of the server.
func (b *Builder) URL(rawURL string) *Builder {
	u, err := ParseURL(rawURL)
	if err != nil {
		b.setErr(err)
		return b
	}

	b.url = u

	return b
}

// Timeout sets the timeout of a whole round trip. A non-positive value keeps
// the default.
func (b *Builder) Timeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.timeout = timeout
	}

	return b
}

// BasicAuth authenticates every request with the given username and
// password.
func (b *Builder) BasicAuth(user, pass string) *Builder {
	return b.CookieAuth(user + ":" + pass)
}

// CookieAuth authenticates every request with a pre-formatted
// "<user>:<password>" token, as found in the node's cookie file.
func (b *Builder) CookieAuth(token string) *Builder {
	encoded := base64.StdEncoding.EncodeToString([]byte(token))
	b.authHeader = fn.Some("Basic " + encoded)

	return b
}

// HTTPClient replaces the HTTP client used to send requests. The builder's
// timeout is applied to it.
func (b *Builder) HTTPClient(client *http.Client) *Builder {
	b.httpClient = client

	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the configured transport.
func (b *Builder) Build() (*HTTPTransport, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.url == nil {
		return nil, rpcerr.New(rpcerr.KindInvalidURL, "no url set")
	}

	client := &http.Client{}
	if b.httpClient != nil {
		c := *b.httpClient
		client = &c
	}
	client.Timeout = b.timeout

	return &HTTPTransport{
		url:        b.url.String(),
		authHeader: b.authHeader,
		client:     client,
	}, nil
}

// HTTPTransport posts JSON-RPC requests to a bitcoind server. It is safe for
// concurrent use.
type HTTPTransport struct {
	url        string
	authHeader fn.Option[string]
	client     *http.Client
}

// A compile time check to ensure HTTPTransport implements the Transport
// interface.
var _ Transport = (*HTTPTransport)(nil)

// SendRequest posts one request and returns the response envelope. Every
// request carries a fresh UUID and the response must echo it.
//
// NOTE: This is part of the Transport interface.
func (t *HTTPTransport) SendRequest(ctx context.Context, method string,
	params []json.RawMessage) ([]byte, error) {

	id := uuid.NewString()

	body, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindJSON, err, method)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, t.url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindTransport, err, method)
	}
	req.Header.Set("Content-Type", "application/json")
	t.authHeader.WhenSome(func(header string) {
		req.Header.Set("Authorization", header)
	})

	log.Tracef("Sending %v request id=%v", method, id)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindTransport, err, method)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindTransport, err, method)
	}

	log.Tracef("Received %v response id=%v status=%v bytes=%d", method,
		id, resp.StatusCode, len(respBody))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, rpcerr.Newf(rpcerr.KindTransport, "%s: %s", method,
			resp.Status)
	}

	var envelope Response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		// bitcoind reports RPC errors with a non-200 status and a
		// JSON body. Anything else that is not JSON is a transport
		// failure.
		if resp.StatusCode != http.StatusOK {
			return nil, rpcerr.Newf(rpcerr.KindTransport,
				"%s: %s", method, resp.Status)
		}

		return nil, rpcerr.Wrap(rpcerr.KindJSON, err, method)
	}

	if resp.StatusCode != http.StatusOK && envelope.Error == nil {
		return nil, rpcerr.Newf(rpcerr.KindTransport, "%s: %s", method,
			resp.Status)
	}

	if err := checkID(id, envelope.ID); err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindInvalidResponse, err, method)
	}

	return respBody, nil
}

// checkID asserts that the response id echoes the request id.
func checkID(want string, got json.RawMessage) error {
	var id string
	if err := json.Unmarshal(got, &id); err != nil || id != want {
		return fmt.Errorf("response id %s does not match request id %q",
			got, want)
	}

	return nil
}

// Close releases idle connections held by the transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()

	return nil
}
