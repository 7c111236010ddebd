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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
	"github.com/xelalexv/flompy/pkg/monitor"
)

//
var modeHelp = map[imager.Mode]string{
	imager.ModeBoot: `Use the boot command to show the information found in the boot sector of the
disk. No output file is written.`,
	imager.ModeHigh: `Use the high command to dump all sectors of the disk through the disk
service. Geometry settings not given on the command line are taken from the boot
sector.`,
	imager.ModeLow: `Use the low command to dump all tracks of the disk as raw captures, read
directly from the floppy controller.`,
	imager.ModeFull: `Use the full command to dump all tracks of the disk as raw captures, together
with the timing of each byte. With --passes, each track is read several times
and bytes changing between passes are reported as fuzzy.`,
	imager.ModeSector: `Use the sector command to dump a single sector, given with --tracks,
--sides, and --sectors.`,
	imager.ModeTrack: `Use the track command to dump a single raw track, given with --tracks and
--sides.`,
	imager.ModeFTrack: `Use the ftrack command to dump a single raw track with byte timing, given
with --tracks and --sides.`,
}

//
const imageHelpEpilogue = `- Geometry settings left unspecified are auto-detected from the boot sector,
  where possible. In the sector and track commands, --tracks, --sides and
  --sectors give the coordinates of the unit to dump instead of counts.

- Track dumps are written as records, each consisting of a 32 bit little endian
  length, the captured bytes, and in timing mode one 16 bit little endian
  elapsed tick value per byte.

- Exit codes: 0 success, 1 reset failure, 2 boot sector not read (boot command),
  3 output not opened, 4 unexpected mode, 5 mode not supported, 6 completed
  with errors, 7 failed, 8 out of memory, 9 low level driver not opened,
  255 invalid arguments.

` + runnerHelpEpilogue

/*
	NewImage creates the command for an imaging mode. Which settings are
	offered depends on the mode.
*/
func NewImage(mode imager.Mode) *Image {

	i := &Image{mode: mode}

	use := fmt.Sprintf("%s {--port|--image|--blockdev} ... [flags]", mode)
	if mode.Output() {
		use = fmt.Sprintf("%s {--port|--image|--blockdev} ... [flags] {output file}",
			mode)
	}

	i.Runner = *NewRunner(use, fmt.Sprintf("%s imaging command", mode),
		"\n"+modeHelp[mode], imageHelpEpilogue, i.Run)

	i.FreeHelpShorthand()
	i.AddBaseSettings()
	i.AddSetting(&i.Screen, "screen", "", "", nil,
		"show progress as full-screen map", false)

	if !mode.Output() {
		return i
	}

	i.AddSetting(&i.Output, "output", "o", "", nil,
		"output file, alternatively given as argument", false)
	i.AddSetting(&i.Bytes, "bytes", "b", "", -1,
		"bytes per sector (128-2048)", false)
	i.AddSetting(&i.Sides, "sides", "h", "", -1,
		"number of sides (0-2), or side of unit", false)
	i.AddSetting(&i.Tracks, "tracks", "t", "", -1,
		"number of tracks (0-255), or track of unit", false)
	i.AddSetting(&i.Sectors, "sectors", "s", "", -1,
		"sectors per track (0-255), or sector of unit", false)

	if !mode.LowLevel() {
		return i
	}

	def := fdc.DefaultConfig()
	i.AddSetting(&i.Rate, "rate", "r", "", def.DataRate,
		"data rate (0-3 for 500, 300, 250, 1000 kbit/s)", false)
	i.AddSetting(&i.Encoding, "encoding", "e", "", def.Encoding.String(),
		"encoding, mfm or fm", false)
	i.AddSetting(&i.Step, "step", "", "", int(def.StepRate),
		"step rate time (0-15)", false)
	i.AddSetting(&i.HeadLoad, "head-load", "", "", int(def.HeadLoad),
		"head load time (0-127)", false)
	i.AddSetting(&i.HeadUnload, "head-unload", "", "", int(def.HeadUnload),
		"head unload time (0-15)", false)
	i.AddSetting(&i.Timeout, "timeout", "", "FLOMPY_TIMEOUT", int(def.Timeout),
		"interrupt timeout in system ticks", false)

	if mode.Timing() {
		i.AddSetting(&i.Passes, "passes", "", "", 1,
			"reads per track, for detecting fuzzy bytes", false)
	}

	return i
}

//
type Image struct {
	//
	Runner
	//
	mode   imager.Mode
	Screen bool
	Output string
	//
	Bytes   int
	Sides   int
	Tracks  int
	Sectors int
	//
	Rate       int
	Encoding   string
	Step       int
	HeadLoad   int
	HeadUnload int
	Timeout    int
	Passes     int
}

//
func (i *Image) Run() error {

	if err := i.ParseSettings(); err != nil {
		return err
	}

	settings, err := i.runSettings()
	if err != nil {
		return err
	}

	var open imager.SinkOpener
	if i.mode.Output() {
		if open, err = i.sink(); err != nil {
			return err
		}
	}

	im, stop, err := i.startImager(os.Stdout)
	if err != nil {
		return err
	}
	defer stop()

	if i.Screen {
		sc, err := monitor.OpenScreen()
		if err != nil {
			return fmt.Errorf("cannot open screen: %w", err)
		}
		defer sc.Close()
		im.SetProgress(sc)
	} else {
		im.SetProgress(monitor.NewReporter(os.Stdout))
	}

	rep, err := im.Run(i.mode, settings, open)
	if err != nil {
		return err
	}

	fmt.Println(rep)
	if rep.Outcome == imager.Partial {
		return ErrPartial
	}
	return nil
}

// runSettings validates the command line and turns it into run settings
func (i *Image) runSettings() (imager.Settings, error) {

	ret := imager.Settings{}

	if err := i.validateBase(); err != nil {
		return ret, err
	}

	if !i.mode.Output() {
		return ret, nil
	}

	for _, a := range []struct {
		name     string
		v        int
		min, max int
	}{
		{"bytes", i.Bytes, 128, geometry.MaxSectorSize},
		{"sides", i.Sides, 0, 2},
		{"tracks", i.Tracks, 0, 255},
		{"sectors", i.Sectors, 0, 255},
	} {
		if err := intArg(a.name, a.v, a.min, a.max); err != nil {
			return ret, err
		}
	}

	ret.Geometry = geometry.Geometry{
		SectorBytes:     param(i.Bytes),
		SectorsPerTrack: param(i.Sectors),
		Tracks:          param(i.Tracks),
		Sides:           param(i.Sides),
	}
	log.WithField("mode", i.mode).Infof("parameters: %s", ret.Geometry)

	if !i.mode.LowLevel() {
		return ret, nil
	}

	cfg := fdc.DefaultConfig()
	cfg.Device = i.Device
	cfg.DataRate = i.Rate
	cfg.StepRate = byte(i.Step)
	cfg.HeadLoad = byte(i.HeadLoad)
	cfg.HeadUnload = byte(i.HeadUnload)

	enc, err := fdc.ParseEncoding(i.Encoding)
	if err != nil {
		return ret, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	cfg.Encoding = enc

	if i.Timeout <= 0 || i.Step < 0 || i.HeadLoad < 0 || i.HeadUnload < 0 {
		return ret, fmt.Errorf("%w: timing parameters must not be negative",
			ErrArgs)
	}
	cfg.Timeout = uint32(i.Timeout)

	if err := cfg.Validate(); err != nil {
		return ret, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	ret.Low = cfg

	if i.mode.Timing() {
		if i.Passes < 1 {
			return ret, fmt.Errorf("%w: passes must be at least 1", ErrArgs)
		}
		ret.Passes = i.Passes
	}

	return ret, nil
}

//
func (i *Image) sink() (imager.SinkOpener, error) {

	out := i.Output
	if len(i.Args) > 0 {
		if out != "" || len(i.Args) > 1 {
			return nil, fmt.Errorf("%w: only one output filename allowed",
				ErrArgs)
		}
		out = i.Args[0]
	}

	if out == "" {
		return nil, fmt.Errorf("%w: no output filename given", ErrArgs)
	}

	return imager.FileSink(out), nil
}

//
func param(v int) geometry.Param {
	if v == -1 {
		return geometry.Unset()
	}
	return geometry.Value(v)
}
