//go:build linux

// File: internal/tuntap/tuntap.go
// License: Apache-2.0
//
// TUN/TAP device implementing api.Tunnel on top of songgao/water. water
// creates the interface; frames move through the raw non-blocking descriptor
// so a read never parks the loop.

package tuntap

import (
	"errors"
	"fmt"
	"os"

	"github.com/songgao/water"
	"golang.org/x/sys/unix"

	"github.com/Gibheer/fastd/control"
	"github.com/Gibheer/fastd/pool"
)

// headroom covers an Ethernet header on top of the MTU.
const headroom = 18

// Device is an open TUN or TAP interface.
type Device struct {
	ifce *water.Interface
	name string
	fd   int
	mtu  int
	bufs *pool.BufferPool
}

// Open creates or attaches the interface named name.
func Open(mode control.Mode, name string, mtu int, bp *pool.BufferPool) (*Device, error) {
	cfg := water.Config{DeviceType: water.TAP}
	if mode == control.ModeTUN {
		cfg.DeviceType = water.TUN
	}
	cfg.Name = name
	ifce, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s device %q: %w", mode, name, err)
	}
	f, ok := ifce.ReadWriteCloser.(*os.File)
	if !ok {
		ifce.Close()
		return nil, errors.New("tuntap: device exposes no descriptor")
	}
	// Fd switches the file to blocking mode; undo that.
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		ifce.Close()
		return nil, fmt.Errorf("tuntap: set nonblock: %w", err)
	}
	return &Device{ifce: ifce, name: ifce.Name(), fd: fd, mtu: mtu, bufs: bp}, nil
}

// Name returns the kernel interface name.
func (d *Device) Name() string {
	return d.name
}

// FD returns the device descriptor.
func (d *Device) FD() int {
	return d.fd
}

// Read reads one frame. It returns a nil buffer when no frame is pending.
func (d *Device) Read() (*pool.Buffer, error) {
	buf := d.bufs.Get(d.mtu + headroom)
	n, err := unix.Read(d.fd, buf.Bytes())
	if err != nil {
		buf.Release()
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", d.name, err)
	}
	if n <= 0 {
		buf.Release()
		return nil, nil
	}
	buf.SetLen(n)
	return buf, nil
}

// Write writes one frame. It consumes buf.
func (d *Device) Write(buf *pool.Buffer) error {
	defer buf.Release()
	if _, err := unix.Write(d.fd, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", d.name, err)
	}
	return nil
}

// Close closes the device.
func (d *Device) Close() error {
	return d.ifce.Close()
}
