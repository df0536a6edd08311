package async_test

import (
	"bytes"
	"testing"

	"github.com/Gibheer/fastd/internal/async"
)

func TestNotifyReceive(t *testing.T) {
	c, err := async.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.FD() < 0 {
		t.Fatal("no descriptor")
	}
	if _, ok, err := c.Receive(); ok || err != nil {
		t.Fatalf("empty channel: ok=%v err=%v", ok, err)
	}

	if err := c.Notify(async.Reload, []byte("cfg")); err != nil {
		t.Fatal(err)
	}
	if err := c.Notify(async.Shutdown, nil); err != nil {
		t.Fatal(err)
	}

	msg, ok, err := c.Receive()
	if err != nil || !ok {
		t.Fatalf("first message: ok=%v err=%v", ok, err)
	}
	if msg.Kind != async.Reload || !bytes.Equal(msg.Payload, []byte("cfg")) {
		t.Errorf("unexpected message %+v", msg)
	}
	msg, ok, err = c.Receive()
	if err != nil || !ok || msg.Kind != async.Shutdown || len(msg.Payload) != 0 {
		t.Errorf("second message: %+v ok=%v err=%v", msg, ok, err)
	}
}

func TestNotifyTooLarge(t *testing.T) {
	c, err := async.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Notify(async.Wakeup, make([]byte, 2048)); err == nil {
		t.Error("oversized message accepted")
	}
}
