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

//go:build !linux

package bios

import (
	"fmt"
	"runtime"
)

// BlockDevice is only available on Linux.
type BlockDevice struct{}

//
func OpenBlockDevice(path string) (*BlockDevice, error) {
	return nil, fmt.Errorf(
		"floppy block devices are not supported on %s", runtime.GOOS)
}

//
func (b *BlockDevice) Close() error {
	return nil
}

//
func (b *BlockDevice) Reset(device int) Status {
	return StatusNotReady
}

//
func (b *BlockDevice) Read(device, cylinder, head, sector, count int,
	buf []byte) Status {
	return StatusNotReady
}
