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
	"fmt"

	"github.com/xelalexv/flompy/pkg/geometry"
)

// Unit identifies one read of a run. Sector is 0 for track units, Pass is
// only used in timing modes.
type Unit struct {
	Track  int
	Side   int
	Sector int
	Pass   int
}

//
func (u Unit) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", u.Track, u.Side, u.Sector)
}

/*
	Progress gets told about the course of a run. Start is called once the
	geometry is resolved and validated, Unit before each read, Done after it
	with the read's error, if any, and Finish at the end, also for failed runs.
*/
type Progress interface {
	Start(mode Mode, g geometry.Geometry)
	Unit(u Unit)
	Done(u Unit, err error)
	Finish(r *Report, err error)
}

//
type nopProgress struct{}

func (nopProgress) Start(Mode, geometry.Geometry) {}
func (nopProgress) Unit(Unit)                     {}
func (nopProgress) Done(Unit, error)              {}
func (nopProgress) Finish(*Report, error)         {}
