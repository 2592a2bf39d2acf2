// Package infra contains technical adapters: file and SQL stores, cache
// backends, MQTT alert publishing and metrics exporters. These packages
// depend only on the interfaces defined in the core packages.
package infra
