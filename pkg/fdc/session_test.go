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

package fdc_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xelalexv/flompy/pkg/capture"
	"github.com/xelalexv/flompy/pkg/emulator"
	"github.com/xelalexv/flompy/pkg/fdc"
)

// emulated ticks are shorter than real ones to keep timeouts short
const tick = 5 * time.Millisecond

//
func newRig(t *testing.T, timing bool) (*emulator.Machine, *emulator.Image,
	*fdc.Controller, fdc.Config) {

	t.Helper()

	img := emulator.NewImage(2, 2, 3, 128)
	for c := 0; c < 2; c++ {
		for h := 0; h < 2; h++ {
			for s := 1; s <= 3; s++ {
				d := img.Sector(c, h, s)
				for ix := range d {
					d[ix] = byte(c<<4 | h<<3 | s)
				}
			}
		}
	}

	m := emulator.NewMachine(img, tick)
	cfg := fdc.DefaultConfig()
	cfg.Timing = timing
	cfg.Timeout = 40
	cfg.MotorDelay = 0
	cfg.SettleDelay = 0

	t.Cleanup(m.Wait)
	return m, img, fdc.NewController(m), cfg
}

//
func assertRestored(t *testing.T, m *emulator.Machine) {
	t.Helper()
	m.Wait()
	st := m.State()
	if st.Vector != nil {
		t.Error("interrupt vector not restored")
	}
	if st.PICMask != 0xbc {
		t.Errorf("interrupt mask not restored: %02x", st.PICMask)
	}
	if st.DOR != 0 || st.MotorRunning {
		t.Errorf("controller not left in reset: DOR %02x", st.DOR)
	}
}

//
func TestOpenClose(t *testing.T) {

	m, _, ctrl, cfg := newRig(t, false)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if s.State() != fdc.StateIdle {
		t.Errorf("unexpected state after open: %v", s.State())
	}

	st := m.State()
	if st.Vector == nil || st.PICMask&(1<<fdc.IRQ) != 0 || !st.MotorRunning {
		t.Errorf("session not installed: %+v", st)
	}

	s.Close()
	if s.State() != fdc.StateClosed {
		t.Errorf("unexpected state after close: %v", s.State())
	}
	assertRestored(t, m)

	// closing twice is harmless
	s.Close()
	assertRestored(t, m)
}

//
func TestReadTrack(t *testing.T) {

	m, img, ctrl, cfg := newRig(t, false)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	n, err := s.ReadTrack(1, 1)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	data := s.Buffer().Bytes()
	if n != len(data) || n < 3*128 {
		t.Fatalf("short capture: %d bytes", n)
	}
	if !bytes.Equal(data[:128], img.Sector(1, 1, 1)) {
		t.Error("capture does not start with sector 1")
	}
	if !bytes.Contains(data, img.Sector(1, 1, 3)) {
		t.Error("sector 3 missing from capture")
	}
	if s.Buffer().Ticks() != nil {
		t.Error("tick samples without timing")
	}

	res := s.LastResult()
	if res.Cylinder != 1 || res.Head != 1 {
		t.Errorf("unexpected result: %v", res)
	}

	// every data byte and every completion is acknowledged
	m.Wait()
	if st := m.State(); st.EOIs != st.IRQs {
		t.Errorf("%d interrupts, but %d acknowledged", st.IRQs, st.EOIs)
	}
}

//
func TestReadTrackTiming(t *testing.T) {

	_, _, ctrl, cfg := newRig(t, true)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	n, err := s.ReadTrack(0, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	ticks := s.Buffer().Ticks()
	if len(ticks) != n {
		t.Fatalf("%d tick samples for %d bytes", len(ticks), n)
	}

	// PIT counts down at 1193182 Hz, one byte at 300 kbit/s takes 26.7us
	for ix, e := range capture.Elapsed(ticks, capture.CounterMax) {
		if e != uint16(ix*31) {
			t.Fatalf("unexpected elapsed time at %d: %d", ix, e)
		}
	}
}

//
func TestReadBlankTrack(t *testing.T) {

	_, img, ctrl, cfg := newRig(t, false)
	img.SetBlankTrack(1, 0)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ReadTrack(1, 0); !errors.Is(err, fdc.StatusNoData) {
		t.Errorf("expected no data, got %v", err)
	}
	if s.State() != fdc.StateIdle {
		t.Errorf("session not idle after failed read: %v", s.State())
	}
}

//
func TestBusy(t *testing.T) {

	_, _, ctrl, cfg := newRig(t, false)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if _, err := ctrl.Open(cfg); !errors.Is(err, fdc.StatusBusy) {
		t.Errorf("second open: expected busy, got %v", err)
	}

	s.Close()
	s, err = ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open after close failed: %v", err)
	}
	s.Close()
}

//
func TestNotOpen(t *testing.T) {

	_, _, ctrl, cfg := newRig(t, false)

	s, err := ctrl.Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	s.Close()

	if _, err := s.ReadTrack(0, 0); !errors.Is(err, fdc.StatusNotOpen) {
		t.Errorf("read on closed session: %v", err)
	}
}

//
func TestOpenFaults(t *testing.T) {

	tests := []struct {
		name   string
		faults emulator.Faults
		want   fdc.Status
	}{
		{"reset", emulator.Faults{NoResetIRQ: true}, fdc.StatusResetTimeout},
		{"calibrate timeout", emulator.Faults{NoCalibrateIRQ: true},
			fdc.StatusCalibrateTimeout},
		{"calibrate stuck", emulator.Faults{CalibrateStuck: true},
			fdc.StatusCalibrateFailed},
		{"unresponsive", emulator.Faults{Unresponsive: true},
			fdc.StatusCommandTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			m, _, ctrl, cfg := newRig(t, false)
			m.SetFaults(tc.faults)

			_, err := ctrl.Open(cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			assertRestored(t, m)

			// a failed open leaves nothing behind that blocks the next one
			m.SetFaults(emulator.Faults{})
			s, err := ctrl.Open(cfg)
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			s.Close()
			assertRestored(t, m)
		})
	}
}

//
func TestReadFaults(t *testing.T) {

	tests := []struct {
		name   string
		faults emulator.Faults
		want   fdc.Status
	}{
		{"seek timeout", emulator.Faults{NoSeekIRQ: true}, fdc.StatusSeekTimeout},
		{"seek off", emulator.Faults{SeekOffset: 1}, fdc.StatusSeekFailed},
		{"read timeout", emulator.Faults{NoReadIRQ: true}, fdc.StatusReadTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			m, _, ctrl, cfg := newRig(t, false)

			s, err := ctrl.Open(cfg)
			if err != nil {
				t.Fatalf("open failed: %v", err)
			}
			defer s.Close()

			m.SetFaults(tc.faults)
			if _, err := s.ReadTrack(1, 0); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want.IsTimeout() != (tc.want != fdc.StatusSeekFailed) {
				t.Errorf("unexpected timeout classification for %v", tc.want)
			}
		})
	}
}

//
func TestInvalidConfig(t *testing.T) {

	_, _, ctrl, cfg := newRig(t, false)

	cfg.Device = 4
	if _, err := ctrl.Open(cfg); err == nil {
		t.Error("invalid drive accepted")
	}

	cfg.Device = 0
	cfg.Timeout = 0
	if _, err := ctrl.Open(cfg); err == nil {
		t.Error("zero timeout accepted")
	}
}
