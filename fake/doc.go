// Package fake provides controllable collaborators of the dispatch core for
// tests: a pipe-backed tunnel, an in-memory socket transport, a recording
// protocol and a recording Core.
package fake
