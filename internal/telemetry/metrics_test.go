package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/task"
	"github.com/dshills/eventsys/internal/telemetry"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

// collectMetrics reads all metrics from the reader.
func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

// findMetric searches for a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

// sumOf returns the int64 sum data of a metric.
func sumOf(t *testing.T, rm *metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] data, got %T", m.Data)
	}
	return sum
}

func newObservedEvent(t *testing.T, name string) (*event.Event, *metric.ManualReader) {
	t.Helper()
	reader, mp := newTestMeter()
	obs, err := telemetry.NewMetricsObserver(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsObserver: %v", err)
	}
	e := event.NewEvent(
		event.WithName(name),
		event.WithObserver(obs),
		event.WithReporter(event.ReporterFunc(func(event.Record) {})),
	)
	return e, reader
}

func TestMetricsObserver_CountsFiresAndHandlers(t *testing.T) {
	e, reader := newObservedEvent(t, "saved")

	for range 2 {
		if _, err := e.SubscribeFunc(func(args ...any) error { return nil }); err != nil {
			t.Fatalf("SubscribeFunc: %v", err)
		}
	}
	if _, err := e.SubscribeFunc(func(args ...any) error { return errors.New("fail") }); err != nil {
		t.Fatalf("SubscribeFunc: %v", err)
	}

	if err := e.Fire("a"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if err := e.Fire("b"); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	rm := collectMetrics(t, reader)

	fires := sumOf(t, rm, telemetry.MetricFires)
	if len(fires.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(fires.DataPoints))
	}
	dp := fires.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("expected 2 fires, got %d", dp.Value)
	}
	if v, ok := dp.Attributes.Value(attribute.Key("event")); !ok || v.AsString() != "saved" {
		t.Errorf("expected event attribute saved, got %v", v)
	}
	if v, ok := dp.Attributes.Value(attribute.Key("nested")); !ok || v.AsBool() {
		t.Errorf("expected nested attribute false, got %v", v)
	}

	if got := sumOf(t, rm, telemetry.MetricSubscriberCalls).DataPoints[0].Value; got != 6 {
		t.Errorf("expected 6 invocations, got %d", got)
	}
	if got := sumOf(t, rm, telemetry.MetricSubscriberFailures).DataPoints[0].Value; got != 2 {
		t.Errorf("expected 2 failures, got %d", got)
	}

	// Nothing waited, so the waiter counters never received a point.
	if m := findMetric(rm, telemetry.MetricWaiterResumes); m != nil {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
			t.Errorf("expected no waiter resumes, got %v", sum.DataPoints)
		}
	}
}

func TestMetricsObserver_NestedAttribute(t *testing.T) {
	e, reader := newObservedEvent(t, "nested")

	depth := 0
	if _, err := e.SubscribeFunc(func(args ...any) error {
		depth++
		if depth == 1 {
			return e.Fire()
		}
		return nil
	}); err != nil {
		t.Fatalf("SubscribeFunc: %v", err)
	}

	if err := e.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	fires := sumOf(t, collectMetrics(t, reader), telemetry.MetricFires)
	if len(fires.DataPoints) != 2 {
		t.Fatalf("expected 2 data points, got %d", len(fires.DataPoints))
	}
	for _, dp := range fires.DataPoints {
		if dp.Value != 1 {
			t.Errorf("expected 1 fire per nested value, got %d", dp.Value)
		}
	}
}

func TestMetricsObserver_Waiters(t *testing.T) {
	e, reader := newObservedEvent(t, "ready")

	resumed := task.New(func(tk *task.Task, args ...any) error {
		_, err := e.Wait(tk)
		return err
	}, task.WithName("ok"))
	if _, err := resumed.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	failing := task.New(func(tk *task.Task, args ...any) error {
		if _, err := e.Wait(tk); err != nil {
			return err
		}
		return errors.New("after wait")
	}, task.WithName("fail"))
	if _, err := failing.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	small := task.New(func(tk *task.Task, args ...any) error {
		_, err := e.Wait(tk)
		return err
	}, task.WithName("small"), task.WithMaxArgs(0))
	if _, err := small.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if err := e.Fire("go"); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	totals, err := telemetry.Totals(context.Background(), reader)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}

	want := map[string]int64{
		telemetry.MetricFires:          1,
		telemetry.MetricWaiterResumes:  2,
		telemetry.MetricWaiterFailures: 1,
		telemetry.MetricWaiterSkipped:  1,
	}
	for name, v := range want {
		if totals[name] != v {
			t.Errorf("%s = %d, want %d", name, totals[name], v)
		}
	}
}

func TestSortedNames(t *testing.T) {
	names := telemetry.SortedNames(map[string]int64{"b": 1, "a": 2, "c": 3})
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("unexpected order: %v", names)
	}
}
