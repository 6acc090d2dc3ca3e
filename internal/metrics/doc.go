// Package metrics exposes job execution metrics for Prometheus scraping.
//
// A Collector owns a private registry so that tests and multiple
// collectors in one process never conflict on the default registry.
package metrics
