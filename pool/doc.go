// File: pool/doc.go
// License: Apache-2.0
//
// Package pool provides packet buffers with explicit single ownership.
//
// A *Buffer has exactly one owner at any time. Functions that take a *Buffer
// argument documented as "consumes" take over that ownership; the caller must
// not touch the buffer afterwards. Whoever owns a buffer last calls Release.
package pool
