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

package main

import (
	"fmt"
	"os"

	"github.com/xelalexv/flompy/pkg/imager"
	"github.com/xelalexv/flompy/pkg/run"
)

//
var FlompyVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: flompy {boot|high|low|full|sector|track|ftrack|serve|status|dump|version} ...

run 'flompy {action} --help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\nFlompy %s\n\n", FlompyVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	if mode, err := imager.ParseMode(action); err == nil {
		run.Exit(run.NewImage(mode).Execute(args))
	}

	switch action {

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "status":
		run.DieOnError(run.NewStatus().Execute(args))

	case "dump":
		run.DieOnError(run.NewDump().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
