// Package prometheus renders authcore metrics in Prometheus text exposition
// format.
//
// [NewExporter] takes a built [authcore.Auth] and exposes an http.Handler
// over its snapshot. Counter names are prefixed authcore_*_total; the single
// histogram is authcore_login_latency_seconds. Nothing is registered in a
// global registry; callers mount the Handler where they want it.
package prometheus
