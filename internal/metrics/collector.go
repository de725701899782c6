package metrics

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/objclient/internal/cache"
	"github.com/objectfs/objclient/internal/multipart"
	"github.com/objectfs/objclient/internal/signing"
	"github.com/objectfs/objclient/pkg/errors"
)

// Collector records client metrics in a Prometheus registry.
type Collector struct {
	mu       sync.Mutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	requestCounter    *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	bytesCounter      *prometheus.CounterVec
	signerCounter     *prometheus.CounterVec
	probeCounter      *prometheus.CounterVec
	integrityCounter  *prometheus.CounterVec
	completionCounter *prometheus.CounterVec

	server   *http.Server
	listener net.Listener
	// stop releases the context watcher started by Start; watching is
	// closed once it has returned.
	stop     chan struct{}
	watching chan struct{}
}

// Config represents metrics configuration
type Config struct {
	Address   string            `yaml:"address"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// NewCollector creates a collector with its own registry.
func NewCollector(config *Config, logger *slog.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "objclient"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}
	}

	c.requestCounter = prometheus.NewCounterVec(
		opts("requests_total", "Total number of client operations"),
		[]string{"operation", "status"},
	)
	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Name:        "request_duration_seconds",
			Help:        "Duration of client operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: c.config.Labels,
		},
		[]string{"operation"},
	)
	c.bytesCounter = prometheus.NewCounterVec(
		opts("transferred_bytes_total", "Bytes moved through the integrity pipeline"),
		[]string{"operation"},
	)
	c.signerCounter = prometheus.NewCounterVec(
		opts("signer_selections_total", "Signing contexts selected, by scheme and decision step"),
		[]string{"signer", "step"},
	)
	c.probeCounter = prometheus.NewCounterVec(
		opts("region_probes_total", "Bucket region probes"),
		[]string{"status"},
	)
	c.integrityCounter = prometheus.NewCounterVec(
		opts("integrity_failures_total", "Digest or length mismatches"),
		[]string{"operation"},
	)
	c.completionCounter = prometheus.NewCounterVec(
		opts("multipart_completion_attempts_total", "Multipart completion attempts by outcome"),
		[]string{"outcome"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.requestCounter,
		c.requestDuration,
		c.bytesCounter,
		c.signerCounter,
		c.probeCounter,
		c.integrityCounter,
		c.completionCounter,
	}
	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// RegisterRegionCache exports the statistics of rc.
func (c *Collector) RegisterRegionCache(rc *cache.RegionCache) error {
	gauge := func(name, help string, value func(cache.RegionStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   "region_cache",
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}, func() float64 { return value(rc.Stats()) })
	}
	counter := func(name, help string, value func(cache.RegionStats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   "region_cache",
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}, func() float64 { return value(rc.Stats()) })
	}

	collectors := []prometheus.Collector{
		gauge("entries", "Buckets with a cached region", func(s cache.RegionStats) float64 { return float64(s.Entries) }),
		gauge("capacity", "Region cache capacity", func(s cache.RegionStats) float64 { return float64(s.Capacity) }),
		counter("hits_total", "Region cache hits", func(s cache.RegionStats) float64 { return float64(s.Hits) }),
		counter("misses_total", "Region cache misses", func(s cache.RegionStats) float64 { return float64(s.Misses) }),
		counter("evictions_total", "Region cache evictions", func(s cache.RegionStats) float64 { return float64(s.Evictions) }),
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return fmt.Errorf("failed to register region cache metrics: %w", err)
		}
	}
	return nil
}

// RecordRequest records one client operation.
func (c *Collector) RecordRequest(operation string, duration time.Duration, err error) {
	c.requestCounter.WithLabelValues(operation, classifyError(err)).Inc()
	c.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes records bytes sent or received by an operation.
func (c *Collector) RecordBytes(operation string, n int64) {
	if n > 0 {
		c.bytesCounter.WithLabelValues(operation).Add(float64(n))
	}
}

// RecordSignerSelection records the signing decision for a request.
func (c *Collector) RecordSignerSelection(step string, kind signing.Kind) {
	c.signerCounter.WithLabelValues(kind.String(), step).Inc()
}

// RecordRegionProbe records a region probe result.
func (c *Collector) RecordRegionProbe(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.probeCounter.WithLabelValues(status).Inc()
}

// RecordIntegrityFailure records a digest or length mismatch.
func (c *Collector) RecordIntegrityFailure(operation string) {
	c.integrityCounter.WithLabelValues(operation).Inc()
}

// ObserveCompletionAttempt implements multipart.Observer.
func (c *Collector) ObserveCompletionAttempt(_ int, outcome multipart.OutcomeKind) {
	c.completionCounter.WithLabelValues(outcome.String()).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start serves metrics on the configured address until Stop or ctx is done.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.Address, err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c.listener = ln
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	server := c.server
	stop, watching := make(chan struct{}), make(chan struct{})
	c.stop, c.watching = stop, watching
	go func() {
		if err := server.Serve(ln); err != nil && !stderr.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		defer close(watching)
		select {
		case <-stop:
			return
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	c.logger.Info("metrics server started", "address", ln.Addr().String(), "path", c.config.Path)
	return nil
}

// Addr returns the address the server listens on, or "" before Start.
func (c *Collector) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop stops the metrics server and the goroutine watching Start's context.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	server, stop, watching := c.server, c.stop, c.watching
	c.server, c.listener, c.stop, c.watching = nil, nil, nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-watching
	}
	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// classifyError maps an error to a low-cardinality status label.
func classifyError(err error) string {
	if err == nil {
		return "success"
	}
	var ce *errors.ClientError
	if stderr.As(err, &ce) {
		return string(ce.Code)
	}
	if stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return string(errors.ErrCodeTransferCanceled)
	}
	return string(errors.ErrCodeUnknownError)
}
