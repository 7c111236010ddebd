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
	Package capture holds the buffers that the interrupt producer of the low
	level driver fills during a capture window. A buffer is written only by
	the producer while a capture is in progress, and read only by the owner of
	the driver session once the capture has completed. The completion signal
	of the driver is what hands the buffer over; the buffer itself does no
	locking.
*/
package capture

import (
	"fmt"
	"sync/atomic"
)

// capacity of track capture buffers
const MaxTrackSize = 0x8000

// Buffer is a bounded byte buffer, optionally paired with a positionally
// correlated buffer of hardware tick samples.
type Buffer struct {
	data  []byte
	ticks []uint16
	pos   atomic.Int32
}

/*
	New allocates a buffer of the given capacity. When timing is set, a tick
	buffer of the same length is allocated as well.
*/
func New(capacity int, timing bool) (*Buffer, error) {
	if capacity <= 0 || capacity > MaxTrackSize {
		return nil, fmt.Errorf(
			"invalid capture capacity %d, must be 1 through %d",
			capacity, MaxTrackSize)
	}
	ret := &Buffer{data: make([]byte, capacity)}
	if timing {
		ret.ticks = make([]uint16, capacity)
	}
	return ret, nil
}

//
func (b *Buffer) Timing() bool {
	return b.ticks != nil
}

//
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Reset rewinds the write position. Must not be called during a capture.
func (b *Buffer) Reset() {
	b.pos.Store(0)
}

/*
	Put appends one byte and its tick sample. Bytes beyond capacity are
	dropped. This is called from interrupt context, so it neither blocks nor
	allocates. The tick is ignored when timing is off.
*/
func (b *Buffer) Put(v byte, tick uint16) {
	pos := b.pos.Load()
	if int(pos) >= len(b.data) {
		return
	}
	b.data[pos] = v
	if b.ticks != nil {
		b.ticks[pos] = tick
	}
	b.pos.Store(pos + 1)
}

// Len is the number of bytes captured since the last reset.
func (b *Buffer) Len() int {
	return int(b.pos.Load())
}

// Bytes returns the captured bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.Len()]
}

// Ticks returns the raw tick samples of the captured bytes, or nil if timing
// is off. The slice aliases the buffer.
func (b *Buffer) Ticks() []uint16 {
	if b.ticks == nil {
		return nil
	}
	return b.ticks[:b.Len()]
}
