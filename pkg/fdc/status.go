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

// Status is the outcome of a low level operation. Everything but StatusOK
// is an error.
type Status int

//
const (
	StatusOK Status = iota
	StatusResetTimeout
	StatusCalibrateTimeout
	StatusCalibrateFailed
	StatusSeekTimeout
	StatusSeekFailed
	StatusReadTimeout
	StatusNoData
	StatusCommandTimeout
	StatusBusy
	StatusNotOpen
	StatusNoMemory
)

var statusText = []string{
	StatusOK:               "success",
	StatusResetTimeout:     "controller reset timed out",
	StatusCalibrateTimeout: "calibration timed out",
	StatusCalibrateFailed:  "calibration failed",
	StatusSeekTimeout:      "seek timed out",
	StatusSeekFailed:       "seek failed",
	StatusReadTimeout:      "track read timed out",
	StatusNoData:           "no data on track",
	StatusCommandTimeout:   "controller not accepting commands",
	StatusBusy:             "controller in use by another session",
	StatusNotOpen:          "session not open",
	StatusNoMemory:         "cannot allocate capture buffers",
}

//
func (s Status) String() string {
	if 0 <= int(s) && int(s) < len(statusText) {
		return statusText[s]
	}
	return "unknown low level error"
}

//
func (s Status) Error() string {
	return s.String()
}

// IsTimeout tells whether the controller stopped responding. Data captured
// in an operation that timed out is not trustworthy.
func (s Status) IsTimeout() bool {
	switch s {
	case StatusResetTimeout, StatusCalibrateTimeout, StatusSeekTimeout,
		StatusReadTimeout, StatusCommandTimeout:
		return true
	}
	return false
}
