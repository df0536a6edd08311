// File: reactor/doc.go
// License: Apache-2.0

// Package reactor provides the readiness multiplexer of the dispatch loop with
// interchangeable epoll (Linux) and poll(2) backends.
package reactor
