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
	Package imager runs the imaging modes. A mode resolves the disk geometry,
	validates what it needs of it, opens the output, and then reads unit after
	unit, either sectors through the block service, or raw tracks through a
	low level controller session. A failing unit is recorded and the run goes
	on; only configuration and resource problems end a run early.
*/
package imager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
)

// Settings are the resolved user choices for a run.
type Settings struct {
	// user specified geometry; in single unit modes, the unit's coordinates
	Geometry geometry.Geometry
	// reads per track in timing modes, for detecting fuzzy bytes
	Passes int
	// low level session parameters; timing is set according to the mode
	Low fdc.Config
}

//
type Imager struct {
	svc      *bios.Service
	ctrl     *fdc.Controller
	progress Progress
	out      io.Writer
	//
	lock sync.Mutex // block service use
	//
	boot    *geometry.BootSector
	bootErr error
}

/*
	New creates an imager on top of a block service, and optionally a low level
	controller. Without controller, track modes are not available.
*/
func New(svc *bios.Service, ctrl *fdc.Controller) *Imager {
	return &Imager{
		svc:      svc,
		ctrl:     ctrl,
		progress: nopProgress{},
		out:      os.Stdout,
		bootErr:  errors.New("not read yet"),
	}
}

//
func (im *Imager) SetProgress(p Progress) {
	if p == nil {
		p = nopProgress{}
	}
	im.progress = p
}

// SetOutput sets where boot mode prints the boot sector info.
func (im *Imager) SetOutput(w io.Writer) {
	im.out = w
}

//
func (im *Imager) HasLowLevel() bool {
	return im.ctrl != nil
}

/*
	Start resets the disk system and reads the boot sector. A failed reset is
	an error. A boot sector that cannot be read is not, it only leaves
	geometry auto-detection without input. Boot mode then fails.
*/
func (im *Imager) Start() error {

	im.lock.Lock()
	defer im.lock.Unlock()

	logger := log.WithField("device", im.svc.Device())

	logger.Info("resetting disk system")
	if st := im.svc.Reset(); !st.OK() {
		return fmt.Errorf("%w: %v", ErrReset, st)
	}

	logger.Info("reading boot sector")
	boot, err := im.svc.ReadBootSector()
	if err != nil {
		im.boot, im.bootErr = nil, err
		logger.Warnf("boot sector not read, error %v", err)
		return nil
	}

	im.boot, im.bootErr = boot, nil
	logger.Infof("boot sector: %s", boot.Summary())
	return nil
}

// BootSector gives the boot sector read during Start.
func (im *Imager) BootSector() (*geometry.BootSector, error) {
	if im.boot == nil {
		return nil, fmt.Errorf("%w: %v", ErrBoot, im.bootErr)
	}
	return im.boot, nil
}

/*
	Run executes a mode. The returned report is never nil. An error is
	returned when the run could not be carried out, in which case the outcome
	is fatal. Failed units alone do not produce an error, but a partial
	outcome.
*/
func (im *Imager) Run(mode Mode, s Settings, open SinkOpener) (*Report, error) {

	r := &Report{Mode: mode, Outcome: Fatal}
	var err error

	switch mode {
	case ModeBoot:
		err = im.runBoot(r)
	case ModeHigh:
		err = im.runHigh(r, s, open)
	case ModeSector:
		err = im.runSector(r, s, open)
	case ModeLow, ModeFull, ModeTrack, ModeFTrack:
		err = im.runLow(r, mode, s, open)
	default:
		err = fmt.Errorf("%w: %v", ErrMode, mode)
	}

	if err != nil {
		r.Outcome = Fatal
		log.Errorf("%s: %v", mode, err)
	} else {
		r.finish()
		log.Info(r.Outcome)
	}

	im.progress.Finish(r, err)
	return r, err
}

//
func (im *Imager) runBoot(r *Report) error {
	boot, err := im.BootSector()
	if err != nil {
		return err
	}
	boot.Emit(im.out)
	return nil
}

// withSink opens the output, hands it to f, and closes it again
func withSink(r *Report, open SinkOpener, f func(*Sink) error) error {

	wc, err := open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}

	sink := NewSink(wc)
	err = f(sink)

	if cErr := sink.Close(); err == nil && cErr != nil {
		err = fmt.Errorf("closing output: %w", cErr)
	}
	r.Written = sink.Written()
	return err
}

// unitFailed reports a failed unit, with a dump of whatever was read
func unitFailed(u Unit, err error, data []byte) {
	log.WithFields(log.Fields{
		"track":  u.Track,
		"side":   u.Side,
		"sector": u.Sector,
		"pass":   u.Pass,
	}).Errorf("%s error: %v", u, err)
	if len(data) > 0 && log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("data read:\n%s", DumpString(data))
	}
}

/*
	validateUnit checks the coordinates of a single unit. The sector is only
	checked if wanted. The sector size is checked in any case.
*/
func validateUnit(g geometry.Geometry, sector bool) error {

	var errs []error

	if !g.Tracks.IsSet() {
		errs = append(errs, errors.New("track unspecified"))
	}
	if side, ok := g.Sides.Get(); !ok {
		errs = append(errs, errors.New("side unspecified"))
	} else if side < 0 || side > 1 {
		errs = append(errs, fmt.Errorf("side %d invalid, must be 0 or 1", side))
	}
	if sector && !g.SectorsPerTrack.IsSet() {
		errs = append(errs, errors.New("sector unspecified"))
	}

	errs = append(errs, g.Validate())
	return errors.Join(errs...)
}
