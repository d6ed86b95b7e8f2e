package observe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the metrics SDK.
type ProviderConfig struct {
	// ServiceName is reported in telemetry. Default: "storyecho".
	ServiceName string

	ServiceVersion string

	// Listen is the address serving /metrics, e.g. ":9464".
	Listen string
}

// Provider is a MeterProvider exported for Prometheus scraping.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	server *http.Server
	addr   net.Addr
}

// InitProvider builds a MeterProvider backed by a Prometheus exporter,
// registers it globally and starts serving /metrics on cfg.Listen. Call
// Shutdown to flush and stop the endpoint.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "storyecho"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build metrics resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	p := &Provider{
		mp:     mp,
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:   lis.Addr(),
	}
	go func() {
		if err := p.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics endpoint stopped")
		}
	}()
	logrus.WithField("addr", p.addr.String()).Info("Serving metrics")
	return p, nil
}

func (p *Provider) MeterProvider() *sdkmetric.MeterProvider { return p.mp }

// Addr is the address the metrics endpoint listens on.
func (p *Provider) Addr() string { return p.addr.String() }

// Shutdown flushes the provider and closes the endpoint.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.mp.Shutdown(ctx), p.server.Shutdown(ctx))
}
