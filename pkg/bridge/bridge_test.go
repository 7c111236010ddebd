/*
   Flompy - floppy disk dumper
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of Flompy.

   Flompy is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Flompy is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Flompy. If not, see <http://www.gnu.org/licenses/>.
*/

package bridge

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/emulator"
	"github.com/xelalexv/flompy/pkg/fdc"
)

/*
	adapter plays the far side of the link, on top of an emulated machine. It
	holds each interrupt until the host acknowledges it, so that the machine
	does not run ahead of the host's interrupt handler.
*/
type adapter struct {
	conn net.Conn
	m    *emulator.Machine
	img  *emulator.Image
	//
	wLock sync.Mutex
	eoi   chan struct{}
	done  chan struct{}
}

//
func startAdapter(t *testing.T, img *emulator.Image, garbage []byte) (
	net.Conn, *emulator.Machine) {

	host, dev := net.Pipe()
	m := emulator.NewMachine(img, time.Millisecond)
	a := &adapter{
		conn: dev,
		m:    m,
		img:  img,
		eoi:  make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	m.SetVector(fdc.IRQ, a.interrupt)

	go a.serve(garbage)
	t.Cleanup(func() {
		dev.Close()
		<-a.done
		m.Wait()
	})

	return host, m
}

//
func (a *adapter) write(data ...byte) error {
	a.wLock.Lock()
	defer a.wLock.Unlock()
	_, err := a.conn.Write(data)
	return err
}

//
func (a *adapter) interrupt() {
	if a.write(frameIRQ, fdc.IRQ, 0, 0) != nil {
		return
	}
	select {
	case <-a.eoi:
	case <-a.done:
	case <-time.After(time.Second):
	}
}

//
func (a *adapter) serve(garbage []byte) {

	defer close(a.done)

	if a.write(append(garbage, helloAdapter...)...) != nil {
		return
	}
	hello := make([]byte, frameLength)
	if _, err := readFull(a.conn, hello); err != nil ||
		!bytes.Equal(hello, helloHost) {
		return
	}
	if a.write(adapterReady...) != nil {
		return
	}

	req := make([]byte, frameLength)
	for {
		if _, err := readFull(a.conn, req); err != nil {
			return
		}
		port := uint16(req[1])<<8 | uint16(req[2])

		var err error
		switch req[0] {

		case frameOut:
			a.m.Out(port, req[3])
			if port == fdc.PortPICCommand && req[3] == fdc.PICEndOfInterrupt {
				select {
				case a.eoi <- struct{}{}:
				default:
				}
			}

		case frameIn:
			err = a.write(frameValue, req[1], req[2], a.m.In(port))

		case frameReset:
			err = a.write(frameStatus, byte(a.m.Reset(int(req[1]))), 0, 0)

		case frameRead:
			buf := make([]byte, a.img.SectorSize)
			st := a.m.Read(int(req[1]>>1), int(req[2]), int(req[1]&1),
				int(req[3]), 1, buf)
			if st.OK() {
				l := len(buf)
				err = a.write(append(
					[]byte{frameStatus, byte(st), byte(l >> 8), byte(l)}, buf...)...)
			} else {
				err = a.write(frameStatus, byte(st), 0, 0)
			}
		}

		if err != nil {
			return
		}
	}
}

//
func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		r, err := c.Read(buf[n:])
		n += r
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

//
func patterned(tracks, sides, sectors, size int) *emulator.Image {
	img := emulator.NewImage(tracks, sides, sectors, size)
	for c := 0; c < tracks; c++ {
		for h := 0; h < sides; h++ {
			for s := 1; s <= sectors; s++ {
				d := img.Sector(c, h, s)
				for ix := range d {
					d[ix] = byte(c<<4 | h<<3 | s)
				}
			}
		}
	}
	return img
}

//
func TestSync(t *testing.T) {

	conn, _ := startAdapter(t, patterned(1, 1, 1, 128), []byte("xyhlo"))

	b, err := New(conn, 0)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	// closing twice is harmless
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if v := b.In(fdc.PortMSR); v != 0 {
		t.Errorf("status read on closed bridge returned %02x", v)
	}
}

//
func TestPortIO(t *testing.T) {

	conn, m := startAdapter(t, patterned(1, 1, 1, 128), nil)
	b, err := New(conn, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if mask := b.In(fdc.PortPICMask); mask != 0xbc {
		t.Errorf("unexpected PIC mask %02x", mask)
	}
	b.Out(fdc.PortPICMask, 0xfe)
	if mask := b.In(fdc.PortPICMask); mask != 0xfe {
		t.Errorf("PIC mask not written, got %02x", mask)
	}
	if st := m.State(); st.PICMask != 0xfe {
		t.Errorf("PIC mask not forwarded, got %02x", st.PICMask)
	}
}

//
func TestSetVector(t *testing.T) {

	conn, _ := startAdapter(t, patterned(1, 1, 1, 128), nil)
	b, err := New(conn, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	h := func() {}
	if prev := b.SetVector(fdc.IRQ, h); prev != nil {
		t.Error("unexpected previous handler")
	}
	if prev := b.SetVector(fdc.IRQ, nil); prev == nil {
		t.Error("handler not returned")
	}
	if b.vector(fdc.IRQ) != nil {
		t.Error("handler not removed")
	}
}

//
func TestDiskService(t *testing.T) {

	img := patterned(2, 2, 4, 256)
	img.SetBadSector(1, 0, 2, bios.StatusCRCError)

	conn, _ := startAdapter(t, img, nil)
	b, err := New(conn, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	svc := bios.NewService(b, 0, 0xe5)

	if st := svc.Reset(); !st.OK() {
		t.Fatalf("reset failed: %v", st)
	}

	st, data := svc.ReadSector(1, 1, 3)
	if !st.OK() {
		t.Fatalf("read failed: %v", st)
	}
	if data[0] != 0x1b || data[255] != 0x1b || data[256] != 0xe5 {
		t.Errorf("wrong data: %02x %02x %02x", data[0], data[255], data[256])
	}

	st, data = svc.ReadSector(1, 0, 2)
	if st != bios.StatusCRCError {
		t.Errorf("expected CRC error, got %v", st)
	}
	if data[0] != 0xe5 {
		t.Errorf("failed read not filled: %02x", data[0])
	}

	if st := b.Reset(1); st != bios.StatusTimeout {
		t.Errorf("reset of empty drive: %v", st)
	}
}

//
func TestSession(t *testing.T) {

	img := patterned(2, 1, 2, 128)
	conn, m := startAdapter(t, img, nil)
	b, err := New(conn, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	cfg := fdc.DefaultConfig()
	cfg.Timeout = 100
	cfg.MotorDelay = 0
	cfg.SettleDelay = 0

	s, err := fdc.NewController(b).Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	n, err := s.ReadTrack(1, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	data := s.Buffer().Bytes()
	if n < 256 || !bytes.Equal(data[:128], img.Sector(1, 0, 1)) ||
		!bytes.Contains(data, img.Sector(1, 0, 2)) {
		t.Errorf("unexpected capture of %d bytes", n)
	}

	s.Close()
	b.In(fdc.PortPICMask) // port writes are not answered, sync with a read
	m.Wait()
	if st := m.State(); st.DOR != 0 || st.PICMask != 0xbc {
		t.Errorf("machine not restored: %+v", st)
	}
}

//
func TestReplyTimeout(t *testing.T) {

	host, dev := net.Pipe()
	defer dev.Close()

	go func() {
		dev.Write(helloAdapter)
		hello := make([]byte, frameLength)
		readFull(dev, hello)
		dev.Write(adapterReady)
		// swallow requests, never answer
		buf := make([]byte, frameLength)
		for {
			if _, err := readFull(dev, buf); err != nil {
				return
			}
		}
	}()

	b, err := New(host, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	defer func(d time.Duration) { ReplyTimeout = d }(ReplyTimeout)
	ReplyTimeout = 50 * time.Millisecond

	if _, err := b.request([]byte{frameIn, 0, 0, 0}); !errors.Is(err, ErrNoReply) {
		t.Errorf("expected no reply, got %v", err)
	}
	if v := b.In(fdc.PortFIFO); v != 0xff {
		t.Errorf("unanswered read returned %02x", v)
	}
	if v := b.In(fdc.PortMSR); v&fdc.MSRNonDMA != 0 {
		t.Errorf("unanswered status read signals data: %02x", v)
	}
}
