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

package control

import (
	"fmt"
	"strings"

	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
)

//
type Status struct {
	LowLevel bool   `json:"lowLevel"`
	Boot     string `json:"boot"`
	Geometry string `json:"geometry"`
}

//
func (s *Status) String() string {
	low := "not available"
	if s.LowLevel {
		low = "available"
	}
	return fmt.Sprintf("\nboot sector: %s\ngeometry:    %s\nlow level:   %s\n",
		s.Boot, s.Geometry, low)
}

//
type BootInfo struct {
	BytesPerSector  int    `json:"bytesPerSector"`
	TotalSectors    int    `json:"totalSectors"`
	SectorsPerTrack int    `json:"sectorsPerTrack"`
	Sides           int    `json:"sides"`
	VolumeID        string `json:"volumeId,omitempty"`
	VolumeLabel     string `json:"volumeLabel,omitempty"`
}

//
func newBootInfo(b *geometry.BootSector) *BootInfo {
	ret := &BootInfo{
		BytesPerSector:  int(b.BytesPerSector()),
		TotalSectors:    int(b.TotalSectors()),
		SectorsPerTrack: int(b.SectorsPerTrack()),
		Sides:           int(b.Sides()),
	}
	if b.HasExtendedSignature() {
		id := b.VolumeID()
		ret.VolumeID = fmt.Sprintf("%X", id[:])
		ret.VolumeLabel = strings.TrimSpace(b.VolumeLabel())
	}
	return ret
}

//
type SectorReply struct {
	imager.Unit
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   []byte `json:"data"`
}

//
func (r *SectorReply) String() string {
	head := fmt.Sprintf("%s ok", r.Unit)
	if r.Error != "" {
		head = fmt.Sprintf("%s error: %s", r.Unit, r.Error)
	}
	return fmt.Sprintf("%s\n%s", head, imager.DumpString(r.Data))
}

//
type TrackReply struct {
	imager.Unit
	Length  int      `json:"length"`
	Result  string   `json:"result"`
	Data    []byte   `json:"data"`
	Elapsed []uint16 `json:"elapsed,omitempty"`
}

//
func (r *TrackReply) String() string {
	return fmt.Sprintf("%02d:%02d %d bytes, %s\n%s", r.Track, r.Side, r.Length,
		r.Result, imager.DumpString(r.Data))
}
