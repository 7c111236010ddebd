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
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/capture"
	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
)

// Capture is one raw read of a track.
type Capture struct {
	Data    []byte
	Elapsed []uint16 // nil without timing
	Result  fdc.Result
}

/*
	runLow runs the track modes. One session is opened for the whole run, and
	closed when all units are done, or when the run is cut short.
*/
func (im *Imager) runLow(r *Report, mode Mode, s Settings, open SinkOpener) error {

	var g geometry.Geometry
	var units []Unit

	if mode.Whole() {
		g = s.Geometry.Resolve(im.boot)
		log.Infof("%s: %s", mode, g)
		if err := g.Validate(
			geometry.FieldSectorsPerTrack, geometry.FieldTracks); err != nil {
			return fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		for c := 0; c < g.Tracks.Int(); c++ {
			for h := 0; h < g.Sides.Int(); h++ {
				units = append(units, Unit{Track: c, Side: h})
			}
		}

	} else {
		g = s.Geometry
		log.Infof("%s: track %s, side %s", mode, g.Tracks, g.Sides)
		if err := validateUnit(g, false); err != nil {
			return fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		units = []Unit{{Track: g.Tracks.Int(), Side: g.Sides.Int()}}
	}

	r.Geometry = g

	if im.ctrl == nil {
		return fmt.Errorf("%w: %s", ErrUnsupported, mode)
	}

	passes := 1
	if mode.Timing() && s.Passes > 1 {
		passes = s.Passes
	}
	cfg := s.Low
	cfg.Timing = mode.Timing()

	// output is only opened once the controller is ours
	sess, err := im.openLow(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	return withSink(r, open, func(sink *Sink) error {

		im.progress.Start(mode, g)

		for _, u := range units {
			if err := im.trackUnit(r, sess, sink, u, passes); err != nil {
				return err
			}
		}
		return nil
	})
}

//
func (im *Imager) openLow(cfg fdc.Config) (*fdc.Session, error) {
	sess, err := im.ctrl.Open(cfg)
	if err != nil {
		if errors.Is(err, fdc.StatusNoMemory) {
			return nil, fmt.Errorf("%w: %w", ErrMemory, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrLowOpen, err)
	}
	return sess, nil
}

/*
	trackUnit reads a track once per pass, and writes each pass as a unit of
	its own. A failed read is written as an empty unit. With more than one
	pass, every pass is compared against the first good one, and differing
	bytes are counted as fuzzy.
*/
func (im *Imager) trackUnit(r *Report, sess *fdc.Session, sink *Sink, unit Unit,
	passes int) error {

	var ref []byte
	var unstable fuzzyMap

	for p := 0; p < passes; p++ {

		u := unit
		u.Pass = p
		im.progress.Unit(u)
		r.Units++

		_, err := sess.ReadTrack(u.Track, u.Side)
		im.progress.Done(u, err)

		if err != nil {
			r.Failed++
			unitFailed(u, err, nil)
			if err := sink.WriteTrack(nil, nil); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			continue
		}

		buf := sess.Buffer()
		var elapsed []uint16
		if buf.Timing() {
			elapsed = capture.Elapsed(buf.Ticks(), capture.CounterMax)
		}
		if err := sink.WriteTrack(buf.Bytes(), elapsed); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}

		if passes > 1 {
			if ref == nil {
				ref = append([]byte(nil), buf.Bytes()...)
			} else {
				unstable.mark(ref, buf.Bytes())
			}
		}
	}

	if fuzzy := unstable.count(); fuzzy > 0 {
		r.Fuzzy += fuzzy
		log.WithFields(log.Fields{
			"track": unit.Track, "side": unit.Side,
		}).Warnf("%d fuzzy bytes over %d passes", fuzzy, passes)
	}

	return nil
}

/*
	fuzzyMap collects the positions of a track at which a later pass differed
	from the reference pass. Positions past the end of the shorter read count
	as differing. Each position is counted once, however many passes differ.
*/
type fuzzyMap []bool

//
func (f *fuzzyMap) mark(ref, data []byte) {
	n := len(ref)
	if len(data) > n {
		n = len(data)
	}
	for len(*f) < n {
		*f = append(*f, false)
	}
	for ix := 0; ix < n; ix++ {
		if ix >= len(ref) || ix >= len(data) || ref[ix] != data[ix] {
			(*f)[ix] = true
		}
	}
}

//
func (f fuzzyMap) count() int {
	n := 0
	for _, m := range f {
		if m {
			n++
		}
	}
	return n
}

/*
	ReadTrack reads a single track outside of a run, in a session of its own.
	The session is closed before returning.
*/
func (im *Imager) ReadTrack(cfg fdc.Config, track, side int) (*Capture, error) {

	if im.ctrl == nil {
		return nil, ErrUnsupported
	}

	sess, err := im.openLow(cfg)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if _, err := sess.ReadTrack(track, side); err != nil {
		return nil, err
	}

	buf := sess.Buffer()
	ret := &Capture{
		Data:   append([]byte(nil), buf.Bytes()...),
		Result: sess.LastResult(),
	}
	if buf.Timing() {
		ret.Elapsed = capture.Elapsed(buf.Ticks(), capture.CounterMax)
	}
	return ret, nil
}
