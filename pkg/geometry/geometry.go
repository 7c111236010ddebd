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

package geometry

import (
	"errors"
	"fmt"
)

// maximum sector size the high level reader can buffer
const MaxSectorSize = 2048

//
const DefaultSectorSize = 512

// boot sectors announcing fewer total sectors than this are taken as single
// sided when the side count cannot be determined otherwise
const singleSidedSectorLimit = 1000

// Param is a geometry value that may or may not have been specified. The zero
// value is unspecified.
type Param struct {
	value int
	set   bool
}

//
func Unset() Param {
	return Param{}
}

//
func Value(v int) Param {
	return Param{value: v, set: true}
}

//
func (p Param) IsSet() bool {
	return p.set
}

//
func (p Param) Get() (int, bool) {
	return p.value, p.set
}

// Int returns the value, or 0 if unspecified.
func (p Param) Int() int {
	if p.set {
		return p.value
	}
	return 0
}

//
func (p Param) String() string {
	if !p.set {
		return "UNKNOWN"
	}
	return fmt.Sprintf("%d", p.value)
}

//
type Field int

const (
	FieldSectorBytes Field = iota
	FieldSectorsPerTrack
	FieldTracks
	FieldSides
)

//
func (f Field) String() string {
	switch f {
	case FieldSectorBytes:
		return "sector size"
	case FieldSectorsPerTrack:
		return "sectors per track"
	case FieldTracks:
		return "track count"
	case FieldSides:
		return "side count"
	default:
		return "<unknown>"
	}
}

// Geometry describes the logical layout of a disk. In single unit modes, the
// fields carry the coordinates of the unit instead of counts.
type Geometry struct {
	SectorBytes     Param
	SectorsPerTrack Param
	Tracks          Param
	Sides           Param
}

//
func (g Geometry) String() string {
	return fmt.Sprintf("%s tracks, %s sides, %s sectors, %s bytes",
		g.Tracks, g.Sides, g.SectorsPerTrack, g.SectorBytes)
}

//
func (g Geometry) Get(f Field) Param {
	switch f {
	case FieldSectorBytes:
		return g.SectorBytes
	case FieldSectorsPerTrack:
		return g.SectorsPerTrack
	case FieldTracks:
		return g.Tracks
	case FieldSides:
		return g.Sides
	}
	return Unset()
}

/*
	ResolveSectorBytes fills in only the sector size, from the boot sector if
	available, otherwise with the default. This is all that single sector reads
	auto-detect.
*/
func (g Geometry) ResolveSectorBytes(boot *BootSector) Geometry {
	if !g.SectorBytes.IsSet() {
		if boot != nil && boot.BytesPerSector() > 0 {
			g.SectorBytes = Value(int(boot.BytesPerSector()))
		} else {
			g.SectorBytes = Value(DefaultSectorSize)
		}
	}
	return g
}

/*
	Resolve fills all unspecified fields of the geometry, using the boot sector
	if one is given. Specified fields are never changed, except for a side count
	outside of 1 and 2, which is replaced with 2. Resolving an already resolved
	geometry is a no-op.
*/
func (g Geometry) Resolve(boot *BootSector) Geometry {

	ret := g.ResolveSectorBytes(boot)

	if !ret.SectorsPerTrack.IsSet() && boot != nil && boot.SectorsPerTrack() > 0 {
		ret.SectorsPerTrack = Value(int(boot.SectorsPerTrack()))
	}

	if !ret.Sides.IsSet() && boot != nil && boot.Sides() > 0 {
		ret.Sides = Value(int(boot.Sides()))
	}

	if !ret.Tracks.IsSet() {

		var total uint32
		if boot != nil {
			total = boot.TotalSectors()
		}

		if sides, ok := ret.Sides.Get(); !ok || sides <= 0 {
			if 0 < total && total < singleSidedSectorLimit {
				ret.Sides = Value(1)
			} else {
				ret.Sides = Value(2)
			}
		}

		if spt, ok := ret.SectorsPerTrack.Get(); ok && spt > 0 && boot != nil {
			perTrack := uint32(spt * ret.Sides.Int())
			ret.Tracks = Value(int((total + perTrack - 1) / perTrack))
		}
	}

	if sides, ok := ret.Sides.Get(); !ok || sides < 1 || sides > 2 {
		ret.Sides = Value(2)
	}

	return ret
}

/*
	Validate checks that all required fields are specified, and that the sector
	size, if set, does not exceed the maximum. All violations are reported.
*/
func (g Geometry) Validate(required ...Field) error {

	var errs []error

	for _, f := range required {
		if !g.Get(f).IsSet() {
			errs = append(errs, fmt.Errorf("%s unspecified", f))
		}
	}

	for f := FieldSectorBytes; f <= FieldSides; f++ {
		if v, ok := g.Get(f).Get(); ok && v < 0 {
			errs = append(errs, fmt.Errorf("%s negative: %d", f, v))
		}
	}

	if size, ok := g.SectorBytes.Get(); ok && size > MaxSectorSize {
		errs = append(errs, fmt.Errorf(
			"sector size %d too large, maximum: %d", size, MaxSectorSize))
	}

	return errors.Join(errs...)
}
