package reactor_test

import (
	"testing"
	"time"

	"github.com/Gibheer/fastd/reactor"
)

func TestTimeout(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		name        string
		maintenance time.Duration
		handshake   time.Duration
		pending     bool
		want        time.Duration
	}{
		{"no handshake pending", 10 * time.Second, time.Second, false, 10 * time.Second},
		{"handshake earlier", 10 * time.Second, 2 * time.Second, true, 2 * time.Second},
		{"maintenance earlier", time.Second, 5 * time.Second, true, time.Second},
		{"maintenance overdue", -3 * time.Second, 5 * time.Second, true, 0},
		{"handshake overdue", 4 * time.Second, -time.Millisecond, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reactor.Timeout(now, now.Add(tt.maintenance), now.Add(tt.handshake), tt.pending)
			if got != tt.want {
				t.Errorf("Timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

type recorder struct {
	calls []string
	tags  []reactor.Tag
}

func (r *recorder) HandleTunnel() { r.calls = append(r.calls, "tunnel") }
func (r *recorder) HandleAsync()  { r.calls = append(r.calls, "async") }
func (r *recorder) HandleSocketError(t reactor.Tag) {
	r.calls = append(r.calls, "error")
	r.tags = append(r.tags, t)
}
func (r *recorder) HandleReceive(t reactor.Tag) {
	r.calls = append(r.calls, "receive")
	r.tags = append(r.tags, t)
}

func TestDispatchRouting(t *testing.T) {
	events := []reactor.Event{
		{Tag: reactor.Tag{Kind: reactor.KindTunnel}, Flags: reactor.Readable},
		{Tag: reactor.Tag{Kind: reactor.KindAsync}, Flags: reactor.Readable},
		{Tag: reactor.Tag{Kind: reactor.KindSocket, ID: 0}, Flags: reactor.Readable},
		{Tag: reactor.Tag{Kind: reactor.KindPeerSocket, ID: 7}, Flags: reactor.Readable | reactor.Error},
		{Tag: reactor.Tag{Kind: reactor.KindTunnel}, Flags: reactor.Error},
	}
	var r recorder
	reactor.Dispatch(events, &r)

	want := []string{"tunnel", "async", "receive", "error"}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, r.calls[i], want[i])
		}
	}
	if r.tags[1] != (reactor.Tag{Kind: reactor.KindPeerSocket, ID: 7}) {
		t.Errorf("error routed with tag %+v", r.tags[1])
	}
}
