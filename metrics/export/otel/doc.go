// Package otel exposes authcore counters and histograms as OpenTelemetry
// observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per authcore counter and
// an Int64ObservableGauge per histogram bucket. A single callback reads one
// metrics snapshot per collection cycle. The caller owns the MeterProvider;
// the exporter only registers against the supplied Meter.
package otel
