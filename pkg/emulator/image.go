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
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/geometry"
)

//
type CHS struct {
	Cylinder int
	Head     int
	Sector   int
}

//
type trackKey struct {
	cylinder int
	head     int
}

// well known raw image sizes, for images without usable boot sector
var knownLayouts = []struct {
	size                   int
	tracks, sides, sectors int
}{
	{163840, 40, 1, 8},
	{184320, 40, 1, 9},
	{327680, 40, 2, 8},
	{368640, 40, 2, 9},
	{737280, 80, 2, 9},
	{1228800, 80, 2, 15},
	{1474560, 80, 2, 18},
	{2949120, 80, 2, 36},
}

/*
	Image is an emulated floppy disk: sector contents in a fixed layout, plus
	defects that show up when the disk is read.
*/
type Image struct {
	Tracks          int
	Sides           int
	SectorsPerTrack int
	SectorSize      int
	//
	data []byte
	//
	mu        sync.Mutex
	bad       map[CHS]bios.Status
	flaky     map[CHS]int
	blank     map[trackKey]bool
	fuzzy     map[trackKey][]int
	trackRead map[trackKey]int
}

//
func NewImage(tracks, sides, sectors, sectorSize int) *Image {
	return &Image{
		Tracks:          tracks,
		Sides:           sides,
		SectorsPerTrack: sectors,
		SectorSize:      sectorSize,
		data:            make([]byte, tracks*sides*sectors*sectorSize),
		bad:             map[CHS]bios.Status{},
		flaky:           map[CHS]int{},
		blank:           map[trackKey]bool{},
		fuzzy:           map[trackKey][]int{},
		trackRead:       map[trackKey]int{},
	}
}

/*
	NewImageFromData creates an image from raw sector data. The layout is
	taken from the boot sector if it yields one matching the data size,
	otherwise from a table of common disk sizes.
*/
func NewImageFromData(data []byte) (*Image, error) {

	tracks, sides, sectors, size := 0, 0, 0, geometry.DefaultSectorSize

	if boot, err := geometry.NewBootSector(data); err == nil {
		g := geometry.Geometry{}.Resolve(boot)
		if g.Tracks.IsSet() && g.SectorsPerTrack.IsSet() &&
			g.Tracks.Int()*g.Sides.Int()*g.SectorsPerTrack.Int()*
				g.SectorBytes.Int() == len(data) {
			tracks, sides = g.Tracks.Int(), g.Sides.Int()
			sectors, size = g.SectorsPerTrack.Int(), g.SectorBytes.Int()
		}
	}

	if tracks == 0 {
		for _, l := range knownLayouts {
			if l.size == len(data) {
				tracks, sides, sectors = l.tracks, l.sides, l.sectors
				break
			}
		}
	}

	if tracks == 0 {
		return nil, fmt.Errorf("cannot determine layout of %d byte image",
			len(data))
	}

	ret := NewImage(tracks, sides, sectors, size)
	copy(ret.data, data)

	log.WithFields(log.Fields{
		"tracks": tracks, "sides": sides, "sectors": sectors, "size": size,
	}).Debug("image layout")

	return ret, nil
}

//
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewImageFromData(data)
}

//
func (i *Image) Size() int {
	return len(i.data)
}

//
func (i *Image) contains(c, h, s int) bool {
	return 0 <= c && c < i.Tracks && 0 <= h && h < i.Sides &&
		1 <= s && s <= i.SectorsPerTrack
}

// Sector returns the content of a sector. The slice aliases the image.
func (i *Image) Sector(c, h, s int) []byte {
	if !i.contains(c, h, s) {
		return nil
	}
	off := ((c*i.Sides+h)*i.SectorsPerTrack + s - 1) * i.SectorSize
	return i.data[off : off+i.SectorSize]
}

// SetBadSector makes reads of a sector fail with the given status.
func (i *Image) SetBadSector(c, h, s int, st bios.Status) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.bad[CHS{c, h, s}] = st
}

// SetFlakySector makes the next n reads of a sector fail with a CRC error.
func (i *Image) SetFlakySector(c, h, s, n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.flaky[CHS{c, h, s}] = n
}

// SetBlankTrack makes a track unreadable, as if it was never formatted.
func (i *Image) SetBlankTrack(c, h int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.blank[trackKey{c, h}] = true
}

/*
	SetFuzzyByte marks a position within the raw stream of a track as
	unstable. Each read of the track yields a different value there.
*/
func (i *Image) SetFuzzyByte(c, h, offset int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	k := trackKey{c, h}
	i.fuzzy[k] = append(i.fuzzy[k], offset)
}

// readFault checks a sector read against the defects of the image
func (i *Image) readFault(c, h, s int) bios.Status {

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.blank[trackKey{c, h}] {
		return bios.StatusNoAddressMark
	}
	if st, ok := i.bad[CHS{c, h, s}]; ok {
		return st
	}
	if n := i.flaky[CHS{c, h, s}]; n > 0 {
		i.flaky[CHS{c, h, s}] = n - 1
		return bios.StatusCRCError
	}
	return bios.StatusOK
}
