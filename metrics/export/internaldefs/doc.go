// Package internaldefs holds the metric name and bucket definitions shared
// by the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters can never disagree on names or bucket boundaries.
package internaldefs
