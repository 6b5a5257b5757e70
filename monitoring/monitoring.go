package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/lightningnetwork/corerpc/rpccfg"
	"github.com/lightningnetwork/corerpc/transport"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "corerpc"

	// ResultOK labels calls that returned a result.
	ResultOK = "ok"

	// ResultRPCError labels calls the node answered with an error.
	ResultRPCError = "rpc_error"

	// ResultError labels calls that failed before an answer was decoded.
	ResultError = "error"
)

// Metrics holds the collectors of instrumented transports.
type Metrics struct {
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge

	// latency is nil unless histograms are enabled.
	latency *prometheus.HistogramVec

	clock clock.Clock
}

// NewMetrics creates the collectors and registers them with reg. Latency
// histograms are only collected if perfHistograms is set, as they are high
// cardinality.
func NewMetrics(reg prometheus.Registerer,
	perfHistograms bool) (*Metrics, error) {

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of RPC requests by method and result.",
		}, []string{"method", "result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of RPC requests awaiting a response.",
		}),
		clock: clock.NewDefaultClock(),
	}

	collectors := []prometheus.Collector{m.requests, m.inFlight}
	if perfHistograms {
		m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Round trip time of RPC requests by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"})
		collectors = append(collectors, m.latency)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Wrap returns a transport that records every request sent through next.
func (m *Metrics) Wrap(next transport.Transport) transport.Transport {
	return &instrumentedTransport{
		next:    next,
		metrics: m,
	}
}

// instrumentedTransport decorates a transport with metrics.
type instrumentedTransport struct {
	next    transport.Transport
	metrics *Metrics
}

// SendRequest forwards the request and records its outcome.
//
// NOTE: This is part of the transport.Transport interface.
func (t *instrumentedTransport) SendRequest(ctx context.Context,
	method string, params []json.RawMessage) ([]byte, error) {

	t.metrics.inFlight.Inc()
	defer t.metrics.inFlight.Dec()

	start := t.metrics.clock.Now()
	resp, err := t.next.SendRequest(ctx, method, params)

	if t.metrics.latency != nil {
		elapsed := t.metrics.clock.Now().Sub(start)
		t.metrics.latency.WithLabelValues(method).Observe(
			elapsed.Seconds(),
		)
	}

	t.metrics.requests.WithLabelValues(method, result(resp, err)).Inc()

	return resp, err
}

// Close closes the wrapped transport if it holds resources.
func (t *instrumentedTransport) Close() error {
	if closer, ok := t.next.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// result classifies the outcome of a request.
func result(resp []byte, err error) string {
	if err != nil {
		return ResultError
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return ResultError
	}

	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return ResultRPCError
	}

	return ResultOK
}

// ExportPrometheusMetrics serves the metrics of gatherer on cfg.Listen under
// /metrics. The returned server's Addr is the bound address and the server
// must be shut down by the caller.
func ExportPrometheusMetrics(cfg *rpccfg.Prometheus,
	gatherer prometheus.Gatherer) (*http.Server, error) {

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		gatherer, promhttp.HandlerOpts{},
	))

	server := &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("Prometheus exporter started on %v/metrics", listener.Addr())

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus exporter stopped: %v", err)
		}
	}()

	return server, nil
}
