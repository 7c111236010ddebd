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

/*
	Package monitor provides progress displays for imaging runs: a plain line
	reporter that overwrites the current unit in place, and a full-screen map
	of all units of a disk.
*/
package monitor

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
)

// Reporter shows the unit currently being read on a single line.
type Reporter struct {
	w      io.Writer
	active bool
	failed int
}

//
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

//
func (r *Reporter) Start(mode imager.Mode, g geometry.Geometry) {
	log.WithField("mode", mode).Debugf("starting run: %s", g)
	r.failed = 0
}

//
func (r *Reporter) Unit(u imager.Unit) {
	fmt.Fprintf(r.w, "%s\r", u)
	r.active = true
}

// Done only counts failures, they get logged where they occur.
func (r *Reporter) Done(u imager.Unit, err error) {
	if err != nil {
		r.failed++
	}
}

//
func (r *Reporter) Finish(rep *imager.Report, err error) {

	if r.active {
		fmt.Fprintln(r.w)
		r.active = false
	}

	if err != nil {
		return
	}

	log.WithFields(log.Fields{
		"units":   rep.Units,
		"failed":  r.failed,
		"fuzzy":   rep.Fuzzy,
		"written": rep.Written,
	}).Infof("%s finished", rep.Mode)
}
