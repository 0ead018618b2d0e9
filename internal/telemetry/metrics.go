package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/eventsys/internal/event"
)

// Instrument names recorded by MetricsObserver.
const (
	MetricFires              = "eventsys.fires"
	MetricSubscriberCalls    = "eventsys.subscriber.invocations"
	MetricSubscriberFailures = "eventsys.subscriber.failures"
	MetricWaiterResumes      = "eventsys.waiter.resumes"
	MetricWaiterFailures     = "eventsys.waiter.failures"
	MetricWaiterSkipped      = "eventsys.waiter.skipped"
)

// MetricsObserver translates Fire frames into OpenTelemetry counters.
// It implements event.Observer.
type MetricsObserver struct {
	fires              metric.Int64Counter
	subscriberCalls    metric.Int64Counter
	subscriberFailures metric.Int64Counter
	waiterResumes      metric.Int64Counter
	waiterFailures     metric.Int64Counter
	waiterSkipped      metric.Int64Counter
}

// NewMetricsObserver creates a MetricsObserver whose instruments come from
// meter.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	o := &MetricsObserver{
		fires:              counter(MetricFires, "Number of fire frames dispatched"),
		subscriberCalls:    counter(MetricSubscriberCalls, "Number of subscriber handler invocations"),
		subscriberFailures: counter(MetricSubscriberFailures, "Number of subscriber handlers that failed"),
		waiterResumes:      counter(MetricWaiterResumes, "Number of waiter resume attempts"),
		waiterFailures:     counter(MetricWaiterFailures, "Number of waiter resumes that failed"),
		waiterSkipped:      counter(MetricWaiterSkipped, "Number of waiters dropped for argument capacity"),
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ObserveFire records one Fire frame of e.
func (o *MetricsObserver) ObserveFire(e *event.Event, s event.FireSummary) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("event", e.Name()),
		attribute.Bool("nested", s.Nested),
	)

	o.fires.Add(ctx, 1, attrs)
	add(ctx, o.subscriberCalls, s.SubscribersInvoked, attrs)
	add(ctx, o.subscriberFailures, s.SubscriberFailures, attrs)
	add(ctx, o.waiterResumes, s.WaitersResumed, attrs)
	add(ctx, o.waiterFailures, s.WaiterFailures, attrs)
	add(ctx, o.waiterSkipped, s.WaitersSkipped, attrs)
}

// add skips zero increments so idle instruments stay out of the export.
func add(ctx context.Context, c metric.Int64Counter, n int, opts ...metric.AddOption) {
	if n > 0 {
		c.Add(ctx, int64(n), opts...)
	}
}
