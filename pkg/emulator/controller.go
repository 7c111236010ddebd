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

package emulator

import (
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/fdc"
)

// status bits not used by the driver itself
const (
	st0NotReady       = 0x08
	st0EquipmentCheck = 0x10
	st1EndOfCylinder  = 0x80
	st1MissingMark    = 0x01
	//
	stuckCylinder = 79
)

//
type phase int

const (
	phaseCommand phase = iota
	phaseExecution
	phaseResult
)

//
type senseStatus struct {
	st0 byte
	pcn byte
}

// controller is the register state of an 82077 style floppy controller
type controller struct {
	dor     byte
	ccr     byte
	inReset bool
	//
	phase     phase
	cmd       []byte
	results   []byte
	data      byte
	dataReady bool
	//
	sense   []senseStatus
	pcn     [4]byte
	seeking byte
	specify [2]byte
	// bumped on every reset so that operations in flight can tell they
	// have been aborted
	generation int
}

//
func (c *controller) reset() {
	c.phase = phaseCommand
	c.cmd = nil
	c.results = nil
	c.dataReady = false
	c.sense = nil
	c.seeking = 0
	c.generation++
}

//
func (c *controller) msr(f Faults) byte {

	if c.inReset || f.Unresponsive {
		return 0
	}

	switch c.phase {
	case phaseResult:
		return fdc.MSRRQM | fdc.MSRDIO | fdc.MSRBusy
	case phaseExecution:
		if c.dataReady {
			return fdc.MSRRQM | fdc.MSRDIO | fdc.MSRNonDMA | fdc.MSRBusy
		}
		return fdc.MSRBusy
	}

	return fdc.MSRRQM | c.seeking
}

//
func (c *controller) readFIFO() byte {

	switch c.phase {

	case phaseResult:
		if len(c.results) == 0 {
			c.phase = phaseCommand
			return 0xff
		}
		v := c.results[0]
		c.results = c.results[1:]
		if len(c.results) == 0 {
			c.phase = phaseCommand
		}
		return v

	case phaseExecution:
		if c.dataReady {
			c.dataReady = false
			return c.data
		}
	}

	return 0xff
}

//
func (c *controller) motorOn(drive byte) bool {
	return c.dor&(fdc.DORMotor0<<drive) != 0
}

//
func commandLength(op byte) int {
	switch op & fdc.CmdMaskOpcode {
	case fdc.CmdSpecify, fdc.CmdSeek:
		return 3
	case fdc.CmdCalibrate:
		return 2
	case fdc.CmdReadData, fdc.CmdReadTrack:
		return 9
	default:
		return 1
	}
}

// async runs f as controller activity in the background; caller holds lock
func (m *Machine) async(f func()) {
	m.busy.Add(1)
	go func() {
		defer m.busy.Done()
		f()
	}()
}

// caller holds lock
func (m *Machine) writeDOR(val byte) {

	c := &m.fdc
	c.dor = val

	if val&fdc.DORNoReset == 0 {
		if !c.inReset {
			log.Trace("emulator: controller enters reset")
		}
		c.inReset = true
		c.reset()
		return
	}

	if c.inReset {
		log.Trace("emulator: controller leaves reset")
		c.inReset = false
		c.reset()
		for d := byte(0); d < 4; d++ {
			c.sense = append(c.sense,
				senseStatus{st0: fdc.ST0InterruptMsk | d, pcn: c.pcn[d]})
		}
		if !m.faults.NoResetIRQ {
			m.async(m.raise)
		}
	}
}

// caller holds lock
func (m *Machine) writeFIFO(val byte) {

	c := &m.fdc

	if c.inReset || m.faults.Unresponsive || c.phase != phaseCommand {
		log.Tracef("emulator: command byte %02x ignored", val)
		return
	}

	c.cmd = append(c.cmd, val)
	if len(c.cmd) < commandLength(c.cmd[0]) {
		return
	}

	cmd := c.cmd
	c.cmd = nil
	m.execute(cmd)
}

// caller holds lock
func (m *Machine) execute(cmd []byte) {

	c := &m.fdc
	gen := c.generation
	f := m.faults

	switch cmd[0] & fdc.CmdMaskOpcode {

	case fdc.CmdSpecify:
		c.specify = [2]byte{cmd[1], cmd[2]}

	case fdc.CmdSenseIRQ:
		if len(c.sense) == 0 {
			c.results = []byte{fdc.ST0Invalid}
		} else {
			s := c.sense[0]
			c.sense = c.sense[1:]
			c.results = []byte{s.st0, s.pcn}
		}
		c.phase = phaseResult

	case fdc.CmdCalibrate:
		d := cmd[1] & fdc.DORDriveMask
		c.seeking |= 1 << d
		m.async(func() {
			m.mu.Lock()
			if gen != c.generation {
				m.mu.Unlock()
				return
			}
			c.seeking &^= 1 << d
			st0 := fdc.ST0SeekEnd | d
			if f.CalibrateStuck {
				c.pcn[d] = stuckCylinder
				st0 |= fdc.ST0Abnormal | st0EquipmentCheck
			} else {
				c.pcn[d] = 0
			}
			c.sense = append(c.sense, senseStatus{st0: st0, pcn: c.pcn[d]})
			m.mu.Unlock()
			if !f.NoCalibrateIRQ {
				m.raise()
			}
		})

	case fdc.CmdSeek:
		d := cmd[1] & fdc.DORDriveMask
		head := (cmd[1] >> 2) & 1
		target := int(cmd[2]) + f.SeekOffset
		if target < 0 {
			target = 0
		} else if target > 0xff {
			target = 0xff
		}
		c.seeking |= 1 << d
		m.async(func() {
			m.mu.Lock()
			if gen != c.generation {
				m.mu.Unlock()
				return
			}
			c.seeking &^= 1 << d
			c.pcn[d] = byte(target)
			c.sense = append(c.sense,
				senseStatus{st0: fdc.ST0SeekEnd | head<<2 | d, pcn: c.pcn[d]})
			m.mu.Unlock()
			if !f.NoSeekIRQ {
				m.raise()
			}
		})

	case fdc.CmdReadData, fdc.CmdReadTrack:
		d := cmd[1] & fdc.DORDriveMask
		side := int(cmd[1]>>2) & 1
		cyl := c.pcn[d]
		var disk *Image
		if c.motorOn(d) {
			disk = m.drives[d]
		}
		c.phase = phaseExecution
		m.async(func() {
			m.streamTrack(gen, disk, d, cyl, side, cmd, f.NoReadIRQ)
		})

	default:
		log.Debugf("emulator: invalid command %02x", cmd[0])
		c.results = []byte{fdc.ST0Invalid}
		c.phase = phaseResult
	}
}

/*
	streamTrack delivers the raw track under the head byte by byte, raising an
	interrupt for each, then enters the result phase. Bytes the handler does
	not pick up in time are lost.
*/
func (m *Machine) streamTrack(gen int, disk *Image, drive, cyl byte, side int,
	cmd []byte, noIRQ bool) {

	c := &m.fdc

	var stream []byte
	var jitter []int
	var record byte = 1
	if disk != nil {
		stream, jitter = disk.trackStream(int(cyl), side)
		record = byte(disk.SectorsPerTrack + 1)
	}

	for ix, b := range stream {
		m.mu.Lock()
		if gen != c.generation {
			m.mu.Unlock()
			return
		}
		c.data = b
		c.dataReady = true
		if jitter != nil {
			m.advanceCounter(jitter[ix])
		} else {
			m.advanceCounter(0)
		}
		m.mu.Unlock()

		m.raise()

		m.mu.Lock()
		c.dataReady = false
		m.mu.Unlock()
	}

	m.mu.Lock()
	if gen != c.generation {
		m.mu.Unlock()
		return
	}

	st0 := fdc.ST0Abnormal | byte(side)<<2 | drive
	st1 := byte(st1EndOfCylinder)
	if disk == nil {
		st0 |= st0NotReady
	}
	if len(stream) == 0 {
		st1 = st1MissingMark
	}

	if noIRQ {
		// result phase is lost along with the interrupt
		c.results = nil
		c.phase = phaseCommand
	} else {
		c.results = []byte{st0, st1, 0, cyl, byte(side), record, cmd[5]}
		c.phase = phaseResult
	}
	m.mu.Unlock()

	if !noIRQ {
		m.raise()
	}
}
