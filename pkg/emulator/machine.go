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
	Package emulator provides an emulated PC floppy subsystem on top of disk
	images in memory. A Machine serves both the BIOS style sector reads of the
	block service and the register level protocol of the floppy controller,
	including the interrupt controller, the timer used for timing capture, and
	the system tick counter. Controller faults can be injected to exercise the
	timeout and retry paths of the low level driver.
*/
package emulator

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/fdc"
)

// PIT input clock in Hz
const pitFrequency = 1193182

// Faults are controller misbehaviours the machine can be told to show.
type Faults struct {
	NoResetIRQ     bool // reset completes without interrupt
	NoCalibrateIRQ bool
	CalibrateStuck bool // head never reaches track 0
	NoSeekIRQ      bool
	SeekOffset     int // reported cylinder is off by this after a seek
	NoReadIRQ      bool
	Unresponsive   bool // controller never gets ready for command bytes
}

// Machine emulates the parts of a PC that the floppy tools talk to.
type Machine struct {
	mu     sync.Mutex
	drives [4]*Image
	faults Faults
	//
	start      time.Time
	tickLength time.Duration
	//
	vectors map[int]fdc.Handler
	picMask byte
	eoi     int
	irqs    int
	//
	counter  uint16
	latch    uint16
	latchLo  bool
	latching bool
	//
	fdc  controller
	busy sync.WaitGroup
	//
	sectorReads int
}

/*
	NewMachine creates a machine with the given disk in drive 0. The tick
	length sets how fast the system tick counter advances; pass 0 for the
	standard 55ms.
*/
func NewMachine(disk *Image, tickLength time.Duration) *Machine {
	if tickLength <= 0 {
		tickLength = fdc.TickDuration
	}
	m := &Machine{
		start:      time.Now(),
		tickLength: tickLength,
		vectors:    map[int]fdc.Handler{},
		picMask:    0xbc,
		counter:    0xffff,
	}
	m.drives[0] = disk
	m.fdc.reset()
	m.fdc.inReset = true
	return m
}

// Insert puts a disk into a drive, or removes it when disk is nil.
func (m *Machine) Insert(drive int, disk *Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if 0 <= drive && drive < len(m.drives) {
		m.drives[drive] = disk
	}
}

//
func (m *Machine) SetFaults(f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = f
}

// Wait blocks until any controller activity in progress has finished.
func (m *Machine) Wait() {
	m.busy.Wait()
}

// State gives a snapshot of the interrupt controller and drive state, for
// checking that a session cleaned up after itself.
type State struct {
	Vector       fdc.Handler
	PICMask      byte
	DOR          byte
	EOIs         int
	IRQs         int
	MotorRunning bool
}

//
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Vector:       m.vectors[fdc.IRQ],
		PICMask:      m.picMask,
		DOR:          m.fdc.dor,
		EOIs:         m.eoi,
		IRQs:         m.irqs,
		MotorRunning: m.fdc.dor&0xf0 != 0,
	}
}

//
func (m *Machine) In(port uint16) byte {

	m.mu.Lock()
	defer m.mu.Unlock()

	switch port {
	case fdc.PortMSR:
		return m.fdc.msr(m.faults)
	case fdc.PortFIFO:
		return m.fdc.readFIFO()
	case fdc.PortDIR:
		return 0
	case fdc.PortPICMask:
		return m.picMask
	case fdc.PortPITCounter0:
		return m.readCounter()
	}

	log.Tracef("emulator: read from unmapped port %03x", port)
	return 0xff
}

//
func (m *Machine) Out(port uint16, val byte) {

	m.mu.Lock()
	defer m.mu.Unlock()

	switch port {
	case fdc.PortDOR:
		m.writeDOR(val)
	case fdc.PortDSR:
		m.fdc.ccr = val & 0x03
	case fdc.PortFIFO:
		m.writeFIFO(val)
	case fdc.PortCCR:
		m.fdc.ccr = val & 0x03
	case fdc.PortPICCommand:
		if val == fdc.PICEndOfInterrupt {
			m.eoi++
		}
	case fdc.PortPICMask:
		m.picMask = val
	case fdc.PortPITCommand:
		if val == fdc.PITLatch0 {
			m.latch = m.counter
			m.latching = true
			m.latchLo = true
		}
	default:
		log.Tracef("emulator: write %02x to unmapped port %03x", val, port)
	}
}

//
func (m *Machine) SetVector(irq int, h fdc.Handler) fdc.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.vectors[irq]
	m.vectors[irq] = h
	return prev
}

//
func (m *Machine) Ticks() uint32 {
	return uint32(time.Since(m.start) / m.tickLength)
}

//
func (m *Machine) Sleep(d time.Duration) {
	time.Sleep(d)
}

// readCounter reads PIT channel 0, from the latch if one was taken
func (m *Machine) readCounter() byte {
	v := m.counter
	if m.latching {
		v = m.latch
	}
	if m.latchLo {
		m.latchLo = false
		return byte(v)
	}
	m.latchLo = true
	m.latching = false
	return byte(v >> 8)
}

// advanceCounter lets the PIT count down for one data byte at the current
// data rate; caller holds the lock
func (m *Machine) advanceCounter(jitter int) {
	rate := fdc.DataRates[m.fdc.ccr] * 1000
	m.counter -= uint16(pitFrequency*8/rate + jitter)
}

/*
	raise delivers an interrupt for the controller. Caller must not hold the
	lock. The interrupt is lost if the controller has interrupts disabled, the
	line is masked, or no handler is installed.
*/
func (m *Machine) raise() {
	m.mu.Lock()
	h := m.vectors[fdc.IRQ]
	deliver := h != nil && m.picMask&(1<<fdc.IRQ) == 0 &&
		m.fdc.dor&fdc.DORIRQ != 0 && !m.fdc.inReset
	if deliver {
		m.irqs++
	}
	m.mu.Unlock()

	if deliver {
		h()
	} else {
		log.Trace("emulator: interrupt lost")
	}
}
