package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all metrics for nudge.
type MetricsCollector struct {
	meter metric.Meter

	// Reminder lifecycle metrics
	remindersArmed     metric.Int64Counter
	remindersFired     metric.Int64Counter
	remindersCancelled metric.Int64Counter
	remindersPending   metric.Int64UpDownCounter

	// Session metrics
	sessionsCreated metric.Int64Counter

	// Transport metrics
	notifyFailures metric.Int64Counter

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector. When disabled it
// returns a collector whose record methods are all no-ops.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("nudge")

	remindersArmed, err := meter.Int64Counter(
		"nudge.reminders.armed.total",
		metric.WithDescription("Total number of reminders armed"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders_armed counter: %w", err)
	}

	remindersFired, err := meter.Int64Counter(
		"nudge.reminders.fired.total",
		metric.WithDescription("Total number of reminders delivered"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders_fired counter: %w", err)
	}

	remindersCancelled, err := meter.Int64Counter(
		"nudge.reminders.cancelled.total",
		metric.WithDescription("Total number of reminders cancelled before firing"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders_cancelled counter: %w", err)
	}

	remindersPending, err := meter.Int64UpDownCounter(
		"nudge.reminders.pending",
		metric.WithDescription("Number of currently armed reminders"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders_pending gauge: %w", err)
	}

	sessionsCreated, err := meter.Int64Counter(
		"nudge.sessions.created.total",
		metric.WithDescription("Total number of user sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_created counter: %w", err)
	}

	notifyFailures, err := meter.Int64Counter(
		"nudge.notify.failures.total",
		metric.WithDescription("Total number of failed outbound notification sends"),
		metric.WithUnit("{send}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify_failures counter: %w", err)
	}

	collector := &MetricsCollector{
		meter:              meter,
		remindersArmed:     remindersArmed,
		remindersFired:     remindersFired,
		remindersCancelled: remindersCancelled,
		remindersPending:   remindersPending,
		sessionsCreated:    sessionsCreated,
		notifyFailures:     notifyFailures,
	}

	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// StartPrometheusServer starts the Prometheus metrics server.
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordReminderArmed records that a reminder was armed for a user.
func (m *MetricsCollector) RecordReminderArmed(ctx context.Context, user string) {
	if m.remindersArmed == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("user", user))
	m.remindersArmed.Add(ctx, 1, attrs)
	m.remindersPending.Add(ctx, 1, attrs)
}

// RecordReminderFired records a delivered reminder.
func (m *MetricsCollector) RecordReminderFired(ctx context.Context, user string) {
	if m.remindersFired == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("user", user))
	m.remindersFired.Add(ctx, 1, attrs)
	m.remindersPending.Add(ctx, -1, attrs)
}

// RecordReminderCancelled records a reminder cancelled before it fired.
func (m *MetricsCollector) RecordReminderCancelled(ctx context.Context, user string) {
	if m.remindersCancelled == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("user", user))
	m.remindersCancelled.Add(ctx, 1, attrs)
	m.remindersPending.Add(ctx, -1, attrs)
}

// RecordSessionCreated records a new user session.
func (m *MetricsCollector) RecordSessionCreated(ctx context.Context) {
	if m.sessionsCreated == nil {
		return
	}
	m.sessionsCreated.Add(ctx, 1)
}

// RecordNotifyFailure records a failed outbound send.
func (m *MetricsCollector) RecordNotifyFailure(ctx context.Context, user string) {
	if m.notifyFailures == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("user", user)))
}
