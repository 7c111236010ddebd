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

// IBM System 34 track layout, as seen by a read that starts at the data field
// of the first sector and continues through gaps and ID fields
const (
	gapByte     = 0x4e
	syncLength  = 12
	gap2Length  = 22
	gap3Length  = 54
	gap4bLength = 200
	markSync    = 0xa1
	markID      = 0xfe
	markData    = 0xfb
)

//
func sizeCode(sectorSize int) byte {
	var n byte
	for s := 128; s < sectorSize; s <<= 1 {
		n++
	}
	return n
}

/*
	trackStream renders the raw byte stream of a track. Fuzzy positions get a
	different value on every call, and are delivered late by a few counter
	steps, which also vary per call. The returned jitter is nil for a track
	without fuzzy positions.
*/
func (i *Image) trackStream(c, h int) ([]byte, []int) {

	i.mu.Lock()
	key := trackKey{c, h}
	blank := i.blank[key]
	fuzzy := i.fuzzy[key]
	reads := i.trackRead[key]
	i.trackRead[key] = reads + 1
	i.mu.Unlock()

	if blank || c < 0 || c >= i.Tracks || h < 0 || h >= i.Sides {
		return nil, nil
	}

	n := sizeCode(i.SectorSize)
	ret := make([]byte, 0, i.SectorsPerTrack*(i.SectorSize+150)+gap4bLength)

	for s := 1; s <= i.SectorsPerTrack; s++ {

		data := i.Sector(c, h, s)
		ret = append(ret, data...)
		crc := crc16([]byte{markSync, markSync, markSync, markData}, data)
		ret = append(ret, byte(crc>>8), byte(crc))
		ret = appendRun(ret, gapByte, gap3Length)

		if s == i.SectorsPerTrack {
			break
		}

		ret = appendRun(ret, 0, syncLength)
		id := []byte{markSync, markSync, markSync, markID,
			byte(c), byte(h), byte(s + 1), n}
		crc = crc16(id)
		ret = append(ret, id...)
		ret = append(ret, byte(crc>>8), byte(crc))
		ret = appendRun(ret, gapByte, gap2Length)
		ret = appendRun(ret, 0, syncLength)
		ret = append(ret, markSync, markSync, markSync, markData)
	}

	ret = appendRun(ret, gapByte, gap4bLength)

	var jitter []int
	for _, off := range fuzzy {
		if 0 <= off && off < len(ret) {
			ret[off] ^= 1 << uint(reads%8)
			if jitter == nil {
				jitter = make([]int, len(ret))
			}
			jitter[off] = 1 + reads%fuzzyJitter
		}
	}

	return ret, jitter
}

// maximum extra counter steps for a fuzzy byte
const fuzzyJitter = 4

//
func appendRun(b []byte, v byte, n int) []byte {
	for ; n > 0; n-- {
		b = append(b, v)
	}
	return b
}

// CRC-16/CCITT as used for floppy ID and data fields
func crc16(parts ...[]byte) uint16 {
	crc := uint16(0xffff)
	for _, p := range parts {
		for _, b := range p {
			crc ^= uint16(b) << 8
			for bit := 0; bit < 8; bit++ {
				if crc&0x8000 != 0 {
					crc = crc<<1 ^ 0x1021
				} else {
					crc <<= 1
				}
			}
		}
	}
	return crc
}
