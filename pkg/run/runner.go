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

package run

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/bridge"
	"github.com/xelalexv/flompy/pkg/emulator"
	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/imager"
)

//
const runnerHelpPrologue = ""
const runnerHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.

- Disk access goes through exactly one of these backends:

  --port	serial bridge adapter attached to the floppy controller; all modes
  --image	emulated floppy subsystem with a disk image file; all modes
  --blockdev	Linux floppy block device; sector modes only
`

/*
	NewRunner creates a base runner for commands to use. The parameters are
	passed to the base command wrapped by this runner.
*/
func NewRunner(use, short, long, helpEpilogue string,
	exec func() error) *Runner {
	return &Runner{
		Command: *NewCommand(
			use, short, long, helpEpilogue, exec),
	}
}

//
type Runner struct {
	//
	Command
	//
	Port     string
	Image    string
	BlockDev string
	Device   int
	Fill     int
}

//
func (r *Runner) AddBaseSettings() {
	// Implementation Note: This cannot be included in NewRunner, but rather has
	// to be called from the top level command type. Otherwise, we will confuse
	// Cobra/Viper and the settings will not be filled with their values.
	r.AddSetting(&r.Port, "port", "p", "FLOMPY_PORT", nil,
		"serial port device of bridge adapter", false)
	r.AddSetting(&r.Image, "image", "i", "FLOMPY_IMAGE", nil,
		"disk image file for emulated floppy subsystem", false)
	r.AddSetting(&r.BlockDev, "blockdev", "D", "FLOMPY_BLOCKDEV", nil,
		"floppy block device, e.g. /dev/fd0", false)
	r.AddSetting(&r.Device, "device", "d", "FLOMPY_DEVICE", 0,
		"floppy drive (0-1)", false)
	r.AddSetting(&r.Fill, "fill", "f", "", 0,
		"fill byte for unreadable sectors", false)
}

//
func (r *Runner) validateBase() error {
	if err := intArg("device", r.Device, 0, 1); err != nil {
		return err
	}
	n := 0
	for _, b := range []string{r.Port, r.Image, r.BlockDev} {
		if b != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf(
			"%w: select exactly one of --port, --image, or --blockdev", ErrArgs)
	}
	return nil
}

// backend is the disk access selected on the command line
type backend struct {
	disk  bios.Disk
	hw    fdc.Hardware // nil if there is no low level access
	close func() error
}

//
func (r *Runner) openBackend() (*backend, error) {

	switch {

	case r.Port != "":
		b, err := bridge.Open(r.Port)
		if err != nil {
			return nil, err
		}
		return &backend{disk: b, hw: b, close: b.Close}, nil

	case r.Image != "":
		img, err := emulator.LoadImage(r.Image)
		if err != nil {
			return nil, err
		}
		m := emulator.NewMachine(nil, 0)
		m.Insert(r.Device, img)
		return &backend{disk: m, hw: m, close: func() error {
			m.Wait()
			return nil
		}}, nil

	case r.BlockDev != "":
		if r.Device != 0 {
			log.Warnf("drive %d ignored for block device %s",
				r.Device, r.BlockDev)
		}
		d, err := bios.OpenBlockDevice(r.BlockDev)
		if err != nil {
			return nil, err
		}
		return &backend{disk: d, close: d.Close}, nil
	}

	return nil, fmt.Errorf("%w: no disk access selected", ErrArgs)
}

/*
	startImager opens the backend and starts an imager on top of it. The
	returned stop function releases the backend again.
*/
func (r *Runner) startImager(out io.Writer) (*imager.Imager, func(), error) {

	be, err := r.openBackend()
	if err != nil {
		if errors.Is(err, ErrArgs) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", imager.ErrReset, err)
	}

	stop := func() {
		if err := be.close(); err != nil {
			log.Errorf("closing disk access: %v", err)
		}
	}

	var ctrl *fdc.Controller
	if be.hw != nil {
		ctrl = fdc.NewController(be.hw)
	}

	im := imager.New(bios.NewService(be.disk, r.Device, byte(r.Fill)), ctrl)
	im.SetOutput(out)

	if err := im.Start(); err != nil {
		stop()
		return nil, nil, err
	}

	return im, stop, nil
}

// intArg range checks an integer setting; -1 means unspecified
func intArg(name string, v, min, max int) error {
	if v != -1 && (v < min || v > max) {
		return fmt.Errorf("%w: parameter %s=%d out of range %d to %d",
			ErrArgs, name, v, min, max)
	}
	return nil
}
