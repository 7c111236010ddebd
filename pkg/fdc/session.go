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
	"fmt"
	"runtime"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/capture"
)

// number of sense interrupt commands needed to clear the pending interrupt
// state of all four drives after a reset
const resetDrainCount = 4

//
type State int

const (
	StateClosed State = iota
	StateInstalling
	StateResetting
	StateCalibrating
	StateIdle
	StateSeeking
	StateReadingTrack
	StateClosing
)

//
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateInstalling:
		return "installing"
	case StateResetting:
		return "resetting"
	case StateCalibrating:
		return "calibrating"
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StateReadingTrack:
		return "reading track"
	case StateClosing:
		return "closing"
	default:
		return "<unknown>"
	}
}

// Result holds the result phase registers of the last read command.
type Result struct {
	ST0      byte
	ST1      byte
	ST2      byte
	Cylinder byte
	Head     byte
	Record   byte
	Length   byte
}

//
func (r Result) String() string {
	return fmt.Sprintf("ST0=%02x ST1=%02x ST2=%02x C=%d H=%d R=%d N=%d",
		r.ST0, r.ST1, r.ST2, r.Cylinder, r.Head, r.Record, r.Length)
}

/*
	Session owns the controller between Open and Close. It holds the interrupt
	handler and mask it replaced, the capture buffer the interrupt producer
	fills, and the flag through which the producer signals completion.
*/
type Session struct {
	ctrl *Controller
	hw   Hardware
	cfg  Config
	//
	state    State
	prevISR  Handler
	prevMask byte
	dor      byte
	//
	buf     *capture.Buffer
	pending atomic.Bool
	//
	last     Result
	lastST0  byte
	cylinder byte
}

//
func (s *Session) State() State {
	return s.state
}

//
func (s *Session) Config() Config {
	return s.cfg
}

// Buffer gives the capture buffer. Its content is valid after a successful
// ReadTrack, until the next ReadTrack.
func (s *Session) Buffer() *capture.Buffer {
	return s.buf
}

// LastResult returns the result registers of the most recent track read.
func (s *Session) LastResult() Result {
	return s.last
}

//
func (s *Session) logger() *log.Entry {
	return log.WithFields(log.Fields{"drive": s.cfg.Device, "state": s.state})
}

/*
	open brings the controller from reset to a calibrated idle state. On any
	failure, the session is closed again before returning.
*/
func (s *Session) open() error {

	buf, err := capture.New(capture.MaxTrackSize, s.cfg.Timing)
	if err != nil {
		s.logger().Errorf("capture buffer: %v", err)
		s.ctrl.release()
		return StatusNoMemory
	}
	s.buf = buf

	s.state = StateInstalling
	s.prevISR = s.hw.SetVector(IRQ, s.service)
	s.prevMask = s.hw.In(PortPICMask)
	s.hw.Out(PortPICMask, s.prevMask&^(1<<IRQ))

	s.state = StateResetting
	s.logger().Debug("resetting controller")
	s.hw.Out(PortDOR, 0)
	s.arm()
	s.dor = DORIRQ | DORNoReset | byte(s.cfg.Device)&DORDriveMask
	s.hw.Out(PortDOR, s.dor)

	if !s.waitIRQ() {
		s.close()
		return StatusResetTimeout
	}

	for ix := 0; ix < resetDrainCount; ix++ {
		if _, _, err := s.senseInterrupt(); err != nil {
			s.close()
			return err
		}
	}

	s.hw.Out(PortCCR, byte(s.cfg.DataRate))
	if err := s.command(CmdSpecify,
		s.cfg.StepRate<<4|s.cfg.HeadUnload&0x0f,
		s.cfg.HeadLoad<<1|0x01); err != nil { // non-DMA
		s.close()
		return err
	}

	s.dor |= DORMotor0 << uint(s.cfg.Device)
	s.hw.Out(PortDOR, s.dor)
	s.hw.Sleep(s.cfg.MotorDelay)

	if err := s.calibrate(); err != nil {
		s.close()
		return err
	}

	s.state = StateIdle
	s.logger().Debug("session open")
	return nil
}

//
func (s *Session) calibrate() error {

	s.state = StateCalibrating

	for attempt := 1; attempt <= CalibrateRetries; attempt++ {

		s.arm()
		if err := s.command(CmdCalibrate, byte(s.cfg.Device)); err != nil {
			return err
		}
		if !s.waitIRQ() {
			return StatusCalibrateTimeout
		}

		st0, pcn, err := s.senseInterrupt()
		if err != nil {
			return err
		}
		s.logger().WithFields(log.Fields{
			"attempt": attempt, "st0": st0, "cylinder": pcn,
		}).Trace("calibrate")

		if pcn == 0 {
			s.cylinder = 0
			return nil
		}
	}

	return StatusCalibrateFailed
}

/*
	Close returns the controller to reset with the motor off, and restores the
	interrupt mask and handler that were in place before Open. Closing an
	already closed session does nothing.
*/
func (s *Session) Close() {
	if s.state != StateClosed {
		s.close()
	}
}

//
func (s *Session) close() {

	s.state = StateClosing
	s.logger().Debug("closing session")

	s.dor = 0
	s.hw.Out(PortDOR, 0)
	s.hw.Out(PortPICMask, s.prevMask)
	s.hw.SetVector(IRQ, s.prevISR)
	s.prevISR = nil
	s.pending.Store(false)

	s.state = StateClosed
	s.ctrl.release()
}

/*
	ReadTrack seeks to the track and captures whatever the controller delivers
	for the given side in one multi-track read, starting from sector 1 and
	continuing up to sector 255 or until the controller gives up. The number of
	captured bytes is returned, the bytes themselves are in the session's
	buffer.
*/
func (s *Session) ReadTrack(track, side int) (int, error) {

	if s.state != StateIdle {
		return 0, StatusNotOpen
	}
	defer func() { s.state = StateIdle }()

	if err := s.seek(track, side); err != nil {
		return 0, err
	}

	s.state = StateReadingTrack
	s.buf.Reset()
	head := byte(side&1)<<2 | byte(s.cfg.Device)&DORDriveMask
	enc := s.cfg.Encoding

	for attempt := 1; attempt <= ReadRetries && s.buf.Len() == 0; attempt++ {

		s.arm()
		if err := s.command(CmdReadData|FlagMultiTrack|enc.flag(),
			head,
			byte(track),
			byte(side),
			1,              // first sector
			enc.sizeCode(), // size code
			0xff,           // last sector
			enc.gap(),
			0xff); err != nil { // data length
			return 0, err
		}

		if !s.waitIRQ() {
			s.logger().WithFields(log.Fields{
				"track": track, "side": side, "captured": s.buf.Len(),
			}).Debug("track read timed out")
			return 0, StatusReadTimeout
		}

		if err := s.readResult(); err != nil {
			return 0, err
		}

		s.logger().WithFields(log.Fields{
			"track":    track,
			"side":     side,
			"attempt":  attempt,
			"captured": s.buf.Len(),
		}).Tracef("track read: %s", s.last)
	}

	if s.buf.Len() == 0 {
		return 0, StatusNoData
	}
	return s.buf.Len(), nil
}

//
func (s *Session) seek(track, side int) error {

	s.state = StateSeeking
	head := byte(side&1)<<2 | byte(s.cfg.Device)&DORDriveMask

	for attempt := 1; attempt <= SeekRetries; attempt++ {

		s.arm()
		if err := s.command(CmdSeek, head, byte(track)); err != nil {
			return err
		}
		if !s.waitIRQ() {
			return StatusSeekTimeout
		}

		st0, pcn, err := s.senseInterrupt()
		if err != nil {
			return err
		}
		s.logger().WithFields(log.Fields{
			"attempt": attempt, "st0": st0, "cylinder": pcn, "track": track,
		}).Trace("seek")

		if int(pcn) == track {
			s.cylinder = pcn
			s.hw.Sleep(s.cfg.SettleDelay)
			return nil
		}
	}

	return StatusSeekFailed
}

//
func (s *Session) readResult() error {
	var res [7]byte
	for ix := range res {
		b, err := s.readByte()
		if err != nil {
			return err
		}
		res[ix] = b
	}
	s.last = Result{
		ST0:      res[0],
		ST1:      res[1],
		ST2:      res[2],
		Cylinder: res[3],
		Head:     res[4],
		Record:   res[5],
		Length:   res[6],
	}
	return nil
}

//
func (s *Session) arm() {
	s.pending.Store(true)
}

/*
	waitIRQ busy-waits until the interrupt producer clears the pending flag, or
	the configured number of system ticks has passed. Returns false on timeout.
*/
func (s *Session) waitIRQ() bool {
	start := s.hw.Ticks()
	for s.pending.Load() {
		if s.hw.Ticks()-start > s.cfg.Timeout {
			return false
		}
		runtime.Gosched()
	}
	return true
}

/*
	service is the interrupt producer. While the controller signals non-DMA
	data, bytes are moved into the capture buffer, together with a counter
	sample if timing is on. The drain stops after at most one buffer's worth
	of bytes, so a controller stuck in non-DMA mode cannot hold the handler.
	Any other interrupt completes the pending operation. The interrupt is
	always acknowledged.
*/
func (s *Session) service() {

	if msr := s.hw.In(PortMSR); msr&MSRNonDMA == 0 {
		s.pending.Store(false)

	} else {
		timing := s.buf.Timing()
		limit := s.buf.Cap() + drainSlack
		for n := 0; msr&MSRNonDMA != 0 && n < limit; n++ {
			v := s.hw.In(PortFIFO)
			var tick uint16
			if timing {
				tick = s.counter()
			}
			s.buf.Put(v, tick)
			msr = s.hw.In(PortMSR)
		}
	}

	s.hw.Out(PortPICCommand, PICEndOfInterrupt)
}

// bytes drained per interrupt beyond buffer capacity
const drainSlack = 16

// counter latches and reads the free running PIT channel 0 counter
func (s *Session) counter() uint16 {
	s.hw.Out(PortPITCommand, PITLatch0)
	lo := s.hw.In(PortPITCounter0)
	hi := s.hw.In(PortPITCounter0)
	return uint16(hi)<<8 | uint16(lo)
}
