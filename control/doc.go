// Package control
// License: Apache-2.0
//
// Configuration, hot-reload, runtime metrics and debug introspection for the
// tunnel daemon.
//
// Provides:
//   - YAML configuration with defaults and validation
//   - A current-config store with reload listeners
//   - A file watcher that reports configuration changes
//   - Counters updated by the dispatch loop
//   - Named debug hooks for state dumps
//   - The leveled logger shared by all components
package control
