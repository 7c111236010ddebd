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

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/geometry"
)

//
func (im *Imager) runHigh(r *Report, s Settings, open SinkOpener) error {

	g := s.Geometry.Resolve(im.boot)
	r.Geometry = g
	log.Infof("high: %s", g)

	if err := g.Validate(
		geometry.FieldTracks, geometry.FieldSectorsPerTrack); err != nil {
		return fmt.Errorf("%w: %v", ErrGeometry, err)
	}

	return withSink(r, open, func(sink *Sink) error {

		im.lock.Lock()
		defer im.lock.Unlock()

		im.progress.Start(ModeHigh, g)

		for c := 0; c < g.Tracks.Int(); c++ {
			for h := 0; h < g.Sides.Int(); h++ {
				for sec := 1; sec <= g.SectorsPerTrack.Int(); sec++ {
					u := Unit{Track: c, Side: h, Sector: sec}
					if err := im.sectorUnit(r, sink, u, g.SectorBytes.Int()); err != nil {
						return err
					}
				}
			}
		}

		return nil
	})
}

//
func (im *Imager) runSector(r *Report, s Settings, open SinkOpener) error {

	g := s.Geometry.ResolveSectorBytes(im.boot)
	r.Geometry = g
	log.Infof("sector: track %s, side %s, sector %s, %s bytes",
		g.Tracks, g.Sides, g.SectorsPerTrack, g.SectorBytes)

	if err := validateUnit(g, true); err != nil {
		return fmt.Errorf("%w: %v", ErrGeometry, err)
	}

	return withSink(r, open, func(sink *Sink) error {
		im.lock.Lock()
		defer im.lock.Unlock()
		im.progress.Start(ModeSector, g)
		return im.sectorUnit(r, sink, Unit{
			Track:  g.Tracks.Int(),
			Side:   g.Sides.Int(),
			Sector: g.SectorsPerTrack.Int(),
		}, g.SectorBytes.Int())
	})
}

/*
	sectorUnit reads one sector and writes it to the output, whether the read
	succeeded or not. Caller holds the block service lock.
*/
func (im *Imager) sectorUnit(r *Report, sink *Sink, u Unit, size int) error {

	im.progress.Unit(u)
	r.Units++

	st, data := im.svc.ReadSector(u.Track, u.Side, u.Sector)
	data = data[:size]

	var err error
	if !st.OK() {
		r.Failed++
		err = st
		unitFailed(u, st, data)
	}
	im.progress.Done(u, err)

	if err := sink.WriteSector(data); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

/*
	ReadSector reads a single sector of the given size outside of a run. The
	returned data is a copy, and filled with the fill byte where the read did
	not deliver anything.
*/
func (im *Imager) ReadSector(track, side, sector, size int) ([]byte, bios.Status) {

	if size <= 0 || size > geometry.MaxSectorSize {
		size = geometry.DefaultSectorSize
	}

	im.lock.Lock()
	defer im.lock.Unlock()

	st, data := im.svc.ReadSector(track, side, sector)
	ret := make([]byte, size)
	copy(ret, data)
	return ret, st
}
