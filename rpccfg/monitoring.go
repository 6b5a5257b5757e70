package rpccfg

import (
	"fmt"
	"net"
)

const defaultPrometheusListen = "127.0.0.1:9092"

// Prometheus configures the Prometheus exporter.
//
//nolint:lll
type Prometheus struct {
	Enable         bool   `long:"enable" description:"Enable Prometheus exporting of RPC metrics."`
	Listen         string `long:"listen" description:"The interface the Prometheus exporter should listen on."`
	PerfHistograms bool   `long:"perfhistograms" description:"Enable additional histogram to track the latency of RPC calls."`
}

// DefaultPrometheus returns the default configuration of the exporter.
func DefaultPrometheus() *Prometheus {
	return &Prometheus{
		Listen: defaultPrometheusListen,
	}
}

// Enabled returns whether or not Prometheus monitoring is enabled.
func (p *Prometheus) Enabled() bool {
	return p.Enable
}

// Validate checks the listen address if the exporter is enabled.
func (p *Prometheus) Validate() error {
	if !p.Enable {
		return nil
	}

	if _, _, err := net.SplitHostPort(p.Listen); err != nil {
		return fmt.Errorf("invalid prometheus listen address %q: %w",
			p.Listen, err)
	}

	return nil
}
