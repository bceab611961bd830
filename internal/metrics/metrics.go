package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"icmp-ping/pkg/types"
)

const namespace = "icmp_ping"

// Exporter publishes probe outcomes as Prometheus metrics.
type Exporter struct {
	reg *prometheus.Registry

	sent     prometheus.Counter
	received prometheus.Counter
	lost     *prometheus.CounterVec
	rtt      prometheus.Histogram
	ttl      prometheus.Gauge
}

// NewExporter creates an exporter whose series carry the target label.
func NewExporter(target string) (*Exporter, error) {
	labels := prometheus.Labels{"target": target}

	e := &Exporter{
		reg: prometheus.NewRegistry(),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_sent_total",
			Help:        "Echo requests sent.",
			ConstLabels: labels,
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "replies_received_total",
			Help:        "Matching echo replies received.",
			ConstLabels: labels,
		}),
		lost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "probes_lost_total",
			Help:        "Probes without a matching reply, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "rtt_seconds",
			Help:        "Round-trip time of matching echo replies.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		ttl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "reply_ttl",
			Help:        "IP time-to-live of the last matching reply.",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{e.sent, e.received, e.lost, e.rtt, e.ttl} {
		if err := e.reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Observe records one probe outcome.
func (e *Exporter) Observe(o types.ProbeOutcome) {
	e.sent.Inc()
	switch {
	case o.Success():
		e.received.Inc()
		e.rtt.Observe(o.Delay.Seconds())
		e.ttl.Set(float64(o.TTL))
	case o.Err != nil:
		e.lost.WithLabelValues("send_error").Inc()
	default:
		e.lost.WithLabelValues("timeout").Inc()
	}
}

// Handler serves the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. It returns once the
// listener is bound.
func (e *Exporter) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.WithField("addr", ln.Addr().String()).Info("Metrics exporter listening")
	return ln.Addr(), nil
}
