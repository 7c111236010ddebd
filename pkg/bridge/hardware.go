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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/fdc"
)

/*
	In reads a port on the far side. If the adapter does not answer, 0xff is
	returned, as for a port nobody drives. The controller's main status
	register reads as 0 then instead, so a lost link never looks like a
	controller with data ready.
*/
func (b *Bridge) In(port uint16) byte {
	f, err := b.request([]byte{frameIn, byte(port >> 8), byte(port), 0})
	if err != nil {
		log.Errorf("bridge: reading port %03x: %v", port, err)
		return unanswered(port)
	}
	if f.kind() != frameValue {
		log.Errorf("bridge: unexpected reply to port read: %q", f.head)
		return unanswered(port)
	}
	return f.head[3]
}

//
func unanswered(port uint16) byte {
	if port == fdc.PortMSR {
		return 0
	}
	return 0xff
}

//
func (b *Bridge) Out(port uint16, val byte) {
	b.reqLock.Lock()
	defer b.reqLock.Unlock()
	if err := b.send([]byte{frameOut, byte(port >> 8), byte(port), val}); err != nil {
		log.Errorf("bridge: writing port %03x: %v", port, err)
	}
}

// SetVector binds a handler to interrupts forwarded by the adapter.
func (b *Bridge) SetVector(irq int, h fdc.Handler) fdc.Handler {
	b.vecLock.Lock()
	defer b.vecLock.Unlock()
	prev := b.vectors[irq]
	if h == nil {
		delete(b.vectors, irq)
	} else {
		b.vectors[irq] = h
	}
	return prev
}

// Ticks is kept on the host side, since a round trip for every poll would
// be far too slow.
func (b *Bridge) Ticks() uint32 {
	return uint32(time.Since(b.start) / b.tickLength)
}

//
func (b *Bridge) Sleep(d time.Duration) {
	time.Sleep(d)
}

//
func (b *Bridge) Reset(device int) bios.Status {
	f, err := b.request([]byte{frameReset, byte(device), 0, 0})
	if err != nil {
		log.Errorf("bridge: disk reset: %v", err)
		return bios.StatusTimeout
	}
	return b.status(f)
}

/*
	Read transfers count sectors, one request per sector. The data of each
	sector is copied to buf as far as the adapter delivered it, even if the
	sector failed.
*/
func (b *Bridge) Read(device, cylinder, head, sector, count int,
	buf []byte) bios.Status {

	for k, off := 0, 0; k < count; k++ {

		f, err := b.request([]byte{
			frameRead, byte(device<<1 | head&1), byte(cylinder), byte(sector + k)})
		if err != nil {
			log.Errorf("bridge: disk read: %v", err)
			return bios.StatusTimeout
		}

		if off < len(buf) {
			off += copy(buf[off:], f.data)
		}
		if st := b.status(f); !st.OK() {
			return st
		}
	}

	return bios.StatusOK
}

//
func (b *Bridge) status(f *frame) bios.Status {
	if f.kind() != frameStatus {
		log.Errorf("bridge: unexpected reply to disk request: %q", f.head)
		return bios.StatusUndefined
	}
	return bios.Status(f.head[1])
}
