// Package prometheus exposes client metrics through a prometheus.Collector.
//
// The collector reads a snapshot on every scrape; nothing is cached. Register
// it with your own registry, or use Handler for a standalone endpoint.
package prometheus
