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

package capture

import (
	"encoding/binary"
	"io"
)

// maximum value of the hardware's down-counting tick source
const CounterMax = 0xffff

/*
	Elapsed converts raw samples of a down-counting counter into ticks elapsed
	since the first sample. Counter wrap-around between samples is handled by
	16 bit modular arithmetic.
*/
func Elapsed(raw []uint16, max uint16) []uint16 {
	ret := make([]uint16, len(raw))
	if len(raw) == 0 {
		return ret
	}
	base := max - raw[0]
	for ix, r := range raw {
		ret[ix] = (max - r) - base
	}
	return ret
}

// WriteTicks writes tick values as 16 bit little-endian.
func WriteTicks(w io.Writer, ticks []uint16) error {
	buf := make([]byte, 2*len(ticks))
	for ix, t := range ticks {
		binary.LittleEndian.PutUint16(buf[2*ix:], t)
	}
	_, err := w.Write(buf)
	return err
}
