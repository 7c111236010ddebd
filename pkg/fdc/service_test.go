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


package fdc

import (
	"testing"
	"time"

	"github.com/xelalexv/flompy/pkg/capture"
)

// floatingBus answers every port read with the same value, like a bus
// nobody drives
type floatingBus struct {
	val   byte
	reads int
	eoi   bool
}

func (b *floatingBus) In(port uint16) byte {
	b.reads++
	return b.val
}

func (b *floatingBus) Out(port uint16, val byte) {
	if port == PortPICCommand && val == PICEndOfInterrupt {
		b.eoi = true
	}
}

func (b *floatingBus) SetVector(irq int, h Handler) Handler { return nil }
func (b *floatingBus) Ticks() uint32                        { return 0 }
func (b *floatingBus) Sleep(d time.Duration)                {}

//
func TestServiceBounded(t *testing.T) {

	tests := []struct {
		name   string
		timing bool
	}{
		{"plain", false},
		{"timing", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			buf, err := capture.New(64, tc.timing)
			if err != nil {
				t.Fatal(err)
			}
			bus := &floatingBus{val: 0xff}
			s := &Session{hw: bus, buf: buf}
			s.arm()

			done := make(chan struct{})
			go func() {
				s.service()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("handler still draining after %d port reads", bus.reads)
			}

			if buf.Len() != buf.Cap() {
				t.Errorf("expected full buffer, got %d bytes", buf.Len())
			}
			if !bus.eoi {
				t.Error("interrupt not acknowledged")
			}
			if !s.pending.Load() {
				t.Error("pending operation completed by data interrupt")
			}
		})
	}
}
