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
	"runtime"

	log "github.com/sirupsen/logrus"
)

// waitReady polls the main status register until the controller is ready to
// transfer a byte in the wanted direction, bounded by the interrupt timeout.
func (s *Session) waitReady(toCPU bool) bool {

	want := MSRRQM
	if toCPU {
		want |= MSRDIO
	}

	start := s.hw.Ticks()
	for {
		if s.hw.In(PortMSR)&(MSRRQM|MSRDIO) == want {
			return true
		}
		if s.hw.Ticks()-start > s.cfg.Timeout {
			return false
		}
		runtime.Gosched()
	}
}

// writeByte hands one command byte to the controller
func (s *Session) writeByte(b byte) error {
	if !s.waitReady(false) {
		s.logger().Debugf("controller not ready for command byte %02x", b)
		return StatusCommandTimeout
	}
	s.hw.Out(PortFIFO, b)
	return nil
}

// readByte fetches one result byte from the controller
func (s *Session) readByte() (byte, error) {
	if !s.waitReady(true) {
		s.logger().Debug("controller not ready with result byte")
		return 0, StatusCommandTimeout
	}
	return s.hw.In(PortFIFO), nil
}

//
func (s *Session) command(cmd byte, params ...byte) error {
	s.logger().WithField("params", params).Tracef("command %02x", cmd)
	if err := s.writeByte(cmd); err != nil {
		return err
	}
	for _, p := range params {
		if err := s.writeByte(p); err != nil {
			return err
		}
	}
	return nil
}

/*
	senseInterrupt clears a pending interrupt condition and returns status
	register 0 and the present cylinder. If no interrupt was pending, the
	controller rejects the command with a single invalid status byte, and
	the cylinder is reported as 0xff.
*/
func (s *Session) senseInterrupt() (byte, byte, error) {

	if err := s.command(CmdSenseIRQ); err != nil {
		return 0, 0, err
	}

	st0, err := s.readByte()
	if err != nil {
		return 0, 0, err
	}
	if st0 == ST0Invalid {
		log.Trace("sense interrupt without pending interrupt")
		return st0, 0xff, nil
	}

	pcn, err := s.readByte()
	if err != nil {
		return st0, 0, err
	}

	s.lastST0 = st0
	return st0, pcn, nil
}
