// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics and debug introspection layer for pools.
//
// Provides concurrent-safe registries around single-owner pools:
//   - Named YAML pool profiles with reload listeners
//   - A Prometheus collector over registered pool statistics
//   - Debug probe registration and state export
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
