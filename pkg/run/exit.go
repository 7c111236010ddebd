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
	"os"

	"github.com/xelalexv/flompy/pkg/imager"
)

// ErrPartial is returned by a run that produced output, but had failed units.
var ErrPartial = errors.New("completed, with errors")

// process exit codes
const (
	exitOK          = 0
	exitReset       = 1
	exitBoot        = 2
	exitSink        = 3
	exitMode        = 4
	exitUnsupported = 5
	exitPartial     = 6
	exitFatal       = 7
	exitMemory      = 8
	exitLowOpen     = 9
	exitArgs        = 255
)

// first match wins
var exitCodes = []struct {
	err  error
	code int
}{
	{ErrArgs, exitArgs},
	{imager.ErrReset, exitReset},
	{imager.ErrBoot, exitBoot},
	{imager.ErrSink, exitSink},
	{imager.ErrMode, exitMode},
	{imager.ErrUnsupported, exitUnsupported},
	{ErrPartial, exitPartial},
	{imager.ErrMemory, exitMemory},
	{imager.ErrLowOpen, exitLowOpen},
	{imager.ErrGeometry, exitFatal},
}

// ExitCode maps the outcome of an action to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return exitFatal
}

/*
	Exit terminates the process with the exit code for err. This is the only
	place where an imaging action ends the process.
*/
func Exit(err error) {
	code := ExitCode(err)
	if err != nil && !errors.Is(err, ErrPartial) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	if UnderTest {
		panic(fmt.Sprintf("exit %d", code))
	}
	os.Exit(code)
}
