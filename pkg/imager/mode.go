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

package imager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xelalexv/flompy/pkg/geometry"
)

//
type Mode int

const (
	ModeBoot Mode = iota
	ModeHigh
	ModeLow
	ModeFull
	ModeSector
	ModeTrack
	ModeFTrack
)

var modeNames = []string{
	ModeBoot:   "boot",
	ModeHigh:   "high",
	ModeLow:    "low",
	ModeFull:   "full",
	ModeSector: "sector",
	ModeTrack:  "track",
	ModeFTrack: "ftrack",
}

//
func (m Mode) String() string {
	if 0 <= int(m) && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("<mode %d>", int(m))
}

//
func ParseMode(s string) (Mode, error) {
	for ix, n := range modeNames {
		if strings.EqualFold(s, n) {
			return Mode(ix), nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrMode, s)
}

// LowLevel tells whether the mode reads through the floppy controller.
func (m Mode) LowLevel() bool {
	return m == ModeLow || m == ModeFull || m == ModeTrack || m == ModeFTrack
}

// Timing tells whether the mode captures per byte timing.
func (m Mode) Timing() bool {
	return m == ModeFull || m == ModeFTrack
}

// Whole tells whether the mode reads the entire disk.
func (m Mode) Whole() bool {
	return m == ModeHigh || m == ModeLow || m == ModeFull
}

// Output tells whether the mode produces an output file.
func (m Mode) Output() bool {
	return m != ModeBoot
}

//
type Outcome int

const (
	Complete Outcome = iota
	Partial
	Fatal
)

//
func (o Outcome) String() string {
	switch o {
	case Complete:
		return "completed"
	case Partial:
		return "completed, with errors"
	case Fatal:
		return "failed"
	default:
		return "<unknown>"
	}
}

// error classes, distinguishable at the process boundary with errors.Is
var (
	ErrGeometry    = errors.New("invalid geometry")
	ErrSink        = errors.New("unable to open output")
	ErrMemory      = errors.New("out of memory")
	ErrLowOpen     = errors.New("low level driver not opened")
	ErrMode        = errors.New("unexpected mode")
	ErrUnsupported = errors.New("mode not supported by backend")
	ErrBoot        = errors.New("boot sector not read")
	ErrReset       = errors.New("disk system reset failed")
)

// Report summarizes a run.
type Report struct {
	Mode     Mode
	Outcome  Outcome
	Geometry geometry.Geometry
	Units    int // units attempted
	Failed   int
	Fuzzy    int // bytes that changed between passes
	Written  int64
}

//
func (r *Report) String() string {
	return fmt.Sprintf("%s: %s, %d units, %d failed, %d fuzzy bytes, %d bytes written",
		r.Mode, r.Outcome, r.Units, r.Failed, r.Fuzzy, r.Written)
}

//
func (r *Report) finish() {
	if r.Failed > 0 {
		r.Outcome = Partial
	} else {
		r.Outcome = Complete
	}
}
