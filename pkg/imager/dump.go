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
	"io"
	"strings"
)

// Dump writes data as hex, 32 bytes per line with the offset in front, and
// the bytes of each line in groups of eight.
func Dump(w io.Writer, data []byte) {
	for ix, b := range data {
		if ix&31 == 0 {
			fmt.Fprintf(w, "%04X: ", ix)
		}
		fmt.Fprintf(w, "%02X", b)
		if ix&31 == 31 {
			io.WriteString(w, "\n")
		} else if ix&7 == 7 {
			io.WriteString(w, " ")
		}
	}
	if len(data)&31 != 0 {
		io.WriteString(w, "\n")
	}
}

//
func DumpString(data []byte) string {
	var sb strings.Builder
	Dump(&sb, data)
	return sb.String()
}
