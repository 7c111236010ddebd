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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xelalexv/flompy/pkg/imager"
)

//
func NewDump() *Dump {

	d := &Dump{}
	d.Client = *NewClient(
		`dump -i|--input {file} [--timing]
  dump -t|--track {track} -h|--side {side} [-s|--sector {sector}] [--timing]
      [-a|--address {address}]`,
		"dump tracks from file, or a sector or track from API server",
		`
Use the dump command to output a hex dump of the track records in a file written
by the low, full, track, or ftrack commands, or of a single sector or track read
by the API server. For track files written in a timing mode, pass --timing.`,
		clientHelpEpilogue, d.Run)

	d.FreeHelpShorthand()
	d.AddBaseSettings()
	d.AddSetting(&d.File, "input", "i", "", nil, "track file", false)
	d.AddSetting(&d.Track, "track", "t", "", -1, "track to read", false)
	d.AddSetting(&d.Side, "side", "h", "", 0, "side to read (0-1)", false)
	d.AddSetting(&d.Sector, "sector", "s", "", -1,
		"sector to read; when omitted, the whole track is read", false)
	d.AddSetting(&d.Timing, "timing", "", "", nil,
		"track file includes timing, or read track with timing", false)

	return d
}

//
type Dump struct {
	//
	Client
	//
	File   string
	Track  int
	Side   int
	Sector int
	Timing bool
}

//
func (d *Dump) Run() error {

	if err := d.ParseSettings(); err != nil {
		return err
	}

	if d.File != "" {
		f, err := os.Open(d.File)
		if err != nil {
			return err
		}
		defer f.Close()
		return dumpTracks(bufio.NewReader(f), d.Timing)
	}

	if d.Track < 0 {
		return fmt.Errorf("%w: specify either an input file or a track", ErrArgs)
	}
	if err := intArg("side", d.Side, 0, 1); err != nil {
		return err
	}

	if d.Sector >= 0 {
		return d.print(fmt.Sprintf("/sector/%d/%d/%d", d.Track, d.Side, d.Sector))
	}
	return d.print(fmt.Sprintf("/track/%d/%d?timing=%v", d.Track, d.Side,
		d.Timing))
}

//
func dumpTracks(r io.Reader, timing bool) error {

	for ix := 0; ; ix++ {

		data, elapsed, err := imager.ReadTrackRecord(r, timing)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", ix, err)
		}

		fmt.Fprintf(stdout, "record %d: %d bytes", ix, len(data))
		if l := len(elapsed); l > 0 {
			fmt.Fprintf(stdout, ", %d ticks", elapsed[l-1])
		}
		fmt.Fprintln(stdout)
		imager.Dump(stdout, data)
	}
}
