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

package bios

import "fmt"

// Status is the raw result code of a disk service call. 0 means success.
type Status uint8

//
const (
	StatusOK              Status = 0x00
	StatusBadCommand      Status = 0x01
	StatusNoAddressMark   Status = 0x02
	StatusWriteProtected  Status = 0x03
	StatusSectorNotFound  Status = 0x04
	StatusResetFailed     Status = 0x05
	StatusCRCError        Status = 0x10
	StatusControllerFault Status = 0x20
	StatusSeekFailed      Status = 0x40
	StatusTimeout         Status = 0x80
	StatusNotReady        Status = 0xAA
	StatusUndefined       Status = 0xBB
)

//
const unknownStatus = "Unknown INT 13h error"

var statusText = map[Status]string{
	0x00: "Success",
	0x01: "Bad command",
	0x02: "Address mark not found",
	0x03: "Attempt to write to write-protected disk",
	0x04: "Sector not found",
	0x05: "Reset failed",
	0x06: "Disk changed since last operation",
	0x07: "Drive parameter activity failed",
	0x08: "DMA overrun",
	0x09: "Attempt to DMA across 64kb boundary",
	0x0A: "Bad sector detected",
	0x0B: "Bad track detected",
	0x0C: "Media type not found",
	0x0D: "Invalid number of sector",
	0x0E: "Control data address mark detected",
	0x0F: "DMA out of range",
	0x10: "Data read CRC/ECC error",
	0x11: "CRC/ECC corrected data error",
	0x20: "Controller failure",
	0x40: "Seek operation failed",
	0x80: "Disk timed out or failed to respond",
	0xAA: "Drive not ready",
	0xBB: "Undefined error",
	0xCC: "Write fault",
	0xE0: "Status error",
	0xFF: "Sense operation failed",
}

// Text gives the human readable cause for the status. Unrecognized codes
// yield a generic label.
func (s Status) Text() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return unknownStatus
}

//
func (s Status) String() string {
	return fmt.Sprintf("%02Xh: %s", uint8(s), s.Text())
}

//
func (s Status) Error() string {
	return s.String()
}

//
func (s Status) OK() bool {
	return s == StatusOK
}
