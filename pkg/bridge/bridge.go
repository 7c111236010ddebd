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

/*
	Package bridge connects to a floppy controller through a serial adapter.
	The adapter sits on the bus of the machine with the controller, and
	forwards port I/O, interrupts, and BIOS disk service calls over a simple
	frame protocol. Each frame is four bytes, the first one being the frame
	type. BIOS reads are followed by the sector data.
*/
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/fdc"
)

//
const frameLength = 4
const maxDataLength = 4096
const interruptQueueLength = 16

// ReplyTimeout bounds the wait for the adapter's answer to a request.
var ReplyTimeout = 2 * time.Second

// frame types
const (
	frameIn     = 'i'
	frameOut    = 'o'
	frameValue  = 'v'
	frameIRQ    = 'q'
	frameReset  = 'R'
	frameRead   = 'r'
	frameStatus = 's'
)

//
var helloAdapter = []byte("hlob")
var helloHost = []byte("hloh")
var adapterReady = []byte("rdy!")

//
var ErrClosed = errors.New("bridge closed")
var ErrNoReply = errors.New("no reply from adapter")

//
type frame struct {
	head [frameLength]byte
	data []byte
}

//
func (f *frame) kind() byte {
	return f.head[0]
}

/*
	Bridge is the host side of the adapter link. It serves as the hardware of
	a low level controller session, and as the disk of the block service.
*/
type Bridge struct {
	port io.ReadWriteCloser
	//
	start      time.Time
	tickLength time.Duration
	//
	reqLock sync.Mutex // one request/reply exchange at a time
	replies chan *frame
	irqs    chan int
	//
	vecLock sync.Mutex
	vectors map[int]fdc.Handler
	//
	closing chan struct{}
	loops   sync.WaitGroup
}

//
func Open(port string) (*Bridge, error) {
	p, err := openPort(port)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port %s: %v", port, err)
	}
	ret, err := New(p, 0)
	if err != nil {
		p.Close()
		return nil, err
	}
	return ret, nil
}

//
func openPort(p string) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        1000000,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

/*
	New creates a bridge on an established connection, and syncs with the
	adapter. The tick length sets the length of a system tick as reported by
	Ticks; pass 0 for the standard one.
*/
func New(port io.ReadWriteCloser, tickLength time.Duration) (*Bridge, error) {

	if tickLength <= 0 {
		tickLength = fdc.TickDuration
	}

	ret := &Bridge{
		port:       port,
		start:      time.Now(),
		tickLength: tickLength,
		replies:    make(chan *frame),
		irqs:       make(chan int, interruptQueueLength),
		vectors:    map[int]fdc.Handler{},
		closing:    make(chan struct{}),
	}

	if err := ret.syncOnHello(); err != nil {
		return nil, err
	}

	ret.loops.Add(2)
	go ret.receiveLoop()
	go ret.dispatchLoop()

	return ret, nil
}

//
func (b *Bridge) Close() error {
	select {
	case <-b.closing:
		return nil
	default:
	}
	close(b.closing)
	err := b.port.Close()
	b.loops.Wait()
	return err
}

//
func (b *Bridge) syncOnHello() error {

	log.Info("syncing with adapter")
	hello := make([]byte, frameLength)

	for !bytes.Equal(hello, helloAdapter) {
		shiftLeft(hello)
		if err := b.receive(hello[len(hello)-1:]); err != nil {
			return err
		}
	}

	if err := b.send(helloHost); err != nil {
		return fmt.Errorf("error sending host hello: %v", err)
	}

	for {
		f, err := b.receiveFrame()
		if err != nil {
			return err
		}
		if bytes.Equal(f.head[:], adapterReady) {
			break
		}
		log.Debugf("discarding frame: %q", f.head)
	}

	log.Info("synced with adapter")
	return nil
}

//
func (b *Bridge) receive(data []byte) error {
	_, err := io.ReadFull(b.port, data)
	return err
}

//
func (b *Bridge) send(data []byte) error {
	_, err := b.port.Write(data)
	return err
}

//
func (b *Bridge) receiveFrame() (*frame, error) {

	f := &frame{}
	if err := b.receive(f.head[:]); err != nil {
		return nil, err
	}

	if f.kind() == frameStatus {
		if l := int(f.head[2])<<8 | int(f.head[3]); l > 0 {
			if l > maxDataLength {
				return nil, fmt.Errorf("corrupted frame, excessive length %d", l)
			}
			f.data = make([]byte, l)
			if err := b.receive(f.data); err != nil {
				return nil, fmt.Errorf("error reading frame data: %v", err)
			}
		}
	}

	return f, nil
}

//
func (b *Bridge) receiveLoop() {

	defer b.loops.Done()
	defer close(b.irqs)

	for {
		f, err := b.receiveFrame()
		if err != nil {
			select {
			case <-b.closing:
			default:
				log.Errorf("error receiving from adapter: %v", err)
			}
			return
		}

		switch f.kind() {
		case frameIRQ:
			b.irqs <- int(f.head[1])
		case frameValue, frameStatus:
			select {
			case b.replies <- f:
			case <-b.closing:
				return
			}
		default:
			log.Debugf("discarding frame: %q", f.head)
		}
	}
}

/*
	dispatchLoop runs interrupt handlers. Interrupts without a handler are
	acknowledged right away, as the default handler of the machine would.
*/
func (b *Bridge) dispatchLoop() {
	defer b.loops.Done()
	for irq := range b.irqs {
		log.Tracef("bridge: IRQ %d", irq)
		if h := b.vector(irq); h != nil {
			h()
		} else {
			b.Out(fdc.PortPICCommand, fdc.PICEndOfInterrupt)
		}
	}
}

//
func (b *Bridge) vector(irq int) fdc.Handler {
	b.vecLock.Lock()
	defer b.vecLock.Unlock()
	return b.vectors[irq]
}

//
func (b *Bridge) request(req []byte) (*frame, error) {

	b.reqLock.Lock()
	defer b.reqLock.Unlock()

	if err := b.send(req); err != nil {
		return nil, err
	}

	select {
	case f := <-b.replies:
		return f, nil
	case <-b.closing:
		return nil, ErrClosed
	case <-time.After(ReplyTimeout):
		return nil, ErrNoReply
	}
}

//
func shiftLeft(buf []byte) {
	if len(buf) > 1 {
		copy(buf, buf[1:])
	}
}
