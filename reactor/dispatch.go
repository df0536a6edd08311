// File: reactor/dispatch.go
// License: Apache-2.0

package reactor

// Handler receives routed readiness events.
type Handler interface {
	HandleTunnel()
	HandleAsync()
	// HandleSocketError is called for error or hang-up on a socket source.
	HandleSocketError(t Tag)
	// HandleReceive is called for read readiness without error on a socket source.
	HandleReceive(t Tag)
}

// Dispatch routes events to h in order. Error wins over read readiness.
func Dispatch(events []Event, h Handler) {
	for _, ev := range events {
		switch ev.Tag.Kind {
		case KindTunnel:
			if ev.Flags&Readable != 0 {
				h.HandleTunnel()
			}
		case KindAsync:
			if ev.Flags&Readable != 0 {
				h.HandleAsync()
			}
		case KindSocket, KindPeerSocket:
			if ev.Flags&Error != 0 {
				h.HandleSocketError(ev.Tag)
			} else if ev.Flags&Readable != 0 {
				h.HandleReceive(ev.Tag)
			}
		}
	}
}
