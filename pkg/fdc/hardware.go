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

import "time"

// Handler is an interrupt service routine. It runs in interrupt context, i.e.
// concurrently with the session owner, and must not block.
type Handler func()

/*
	Hardware is the boundary to the PC platform: port I/O, binding of interrupt
	service routines to IRQ lines, the coarse system tick counter, and real
	time delays. Implementations must allow In and Out to be called from a
	Handler while the session owner is waiting.
*/
type Hardware interface {
	In(port uint16) byte
	Out(port uint16, val byte)
	// SetVector installs h for the given IRQ line and returns the handler
	// that was installed before, which may be nil.
	SetVector(irq int, h Handler) Handler
	// Ticks returns the coarse system tick counter, which advances at
	// roughly TickRate per second.
	Ticks() uint32
	Sleep(d time.Duration)
}

// system timer ticks per second
const TickRate = 18.2

// TickDuration is the real time length of one system tick.
const TickDuration = time.Second * 10 / 182

// controller registers, primary FDC
const (
	PortDOR  uint16 = 0x3f2 // digital output register
	PortMSR  uint16 = 0x3f4 // main status register (read)
	PortDSR  uint16 = 0x3f4 // data rate select register (write)
	PortFIFO uint16 = 0x3f5
	PortDIR  uint16 = 0x3f7 // digital input register (read)
	PortCCR  uint16 = 0x3f7 // configuration control register (write)
)

// digital output register bits
const (
	DORDriveMask byte = 0x03
	DORNoReset   byte = 0x04
	DORIRQ       byte = 0x08 // IRQ & DMA enable
	DORMotor0    byte = 0x10
)

// main status register bits
const (
	MSRBusyMask byte = 0x0f // per drive seek in progress
	MSRBusy     byte = 0x10 // command in progress
	MSRNonDMA   byte = 0x20 // execution phase in non-DMA mode
	MSRDIO      byte = 0x40 // data direction, set for controller to CPU
	MSRRQM      byte = 0x80 // data register ready
)

// controller commands
const (
	CmdReadTrack  byte = 0x02
	CmdSpecify    byte = 0x03
	CmdReadData   byte = 0x06
	CmdCalibrate  byte = 0x07
	CmdSenseIRQ   byte = 0x08
	CmdSeek       byte = 0x0f
	CmdMaskOpcode byte = 0x1f
	//
	FlagSkip       byte = 0x20
	FlagMFM        byte = 0x40
	FlagMultiTrack byte = 0x80
)

// status register 0 bits
const (
	ST0SeekEnd      byte = 0x20
	ST0Abnormal     byte = 0x40
	ST0Invalid      byte = 0x80
	ST0InterruptMsk byte = 0xc0
)

// interrupt controller
const (
	IRQ               = 6
	PortPICCommand    = 0x20
	PortPICMask       = 0x21
	PICEndOfInterrupt = 0x20
)

// programmable interval timer, channel 0 is the free running counter used for
// timing capture
const (
	PortPITCounter0 uint16 = 0x40
	PortPITCommand  uint16 = 0x43
	PITLatch0       byte   = 0x00
)
