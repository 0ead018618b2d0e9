// Package telemetry records event dispatch as OpenTelemetry metrics.
//
// MetricsObserver is installed on events with event.WithObserver. Every Fire
// frame adds to counters tagged with the event name and whether the frame was
// nested inside another Fire of the same event.
package telemetry
