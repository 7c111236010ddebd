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

package bios

import (
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/geometry"
)

// number of attempts for each disk service operation
const Retries = 8

// Disk is the sector addressable primitive the block service is built upon,
// modelled after the BIOS disk service.
type Disk interface {
	Reset(device int) Status
	Read(device, cylinder, head, sector, count int, buf []byte) Status
}

// Service reads single sectors from one device through a Disk, with bounded
// retries. It keeps no state across calls other than its sector buffer.
type Service struct {
	disk    Disk
	device  int
	fill    byte
	retries int
	buf     []byte
}

//
func NewService(d Disk, device int, fill byte) *Service {
	return &Service{
		disk:    d,
		device:  device,
		fill:    fill,
		retries: Retries,
		buf:     make([]byte, geometry.MaxSectorSize),
	}
}

//
func (s *Service) Device() int {
	return s.device
}

//
func (s *Service) Fill() byte {
	return s.fill
}

// Reset resets the disk system, retrying until success or the retry ceiling
// is reached. The last status is returned.
func (s *Service) Reset() Status {
	return s.retry(func() Status {
		return s.disk.Reset(s.device)
	})
}

/*
	ReadSector reads the given sector into the service's buffer, which is
	first filled with the fill byte. The buffer is returned regardless of the
	status, so that whatever data the read produced can still be inspected. It
	is only valid until the next call.
*/
func (s *Service) ReadSector(track, side, sector int) (Status, []byte) {

	for ix := range s.buf {
		s.buf[ix] = s.fill
	}

	st := s.retry(func() Status {
		return s.disk.Read(s.device, track, side, sector, 1, s.buf)
	})

	if !st.OK() {
		log.WithFields(log.Fields{
			"track":  track,
			"side":   side,
			"sector": sector,
		}).Debugf("sector read failed: %s", st)
	}

	return st, s.buf
}

// ReadBootSector reads track 0, side 0, sector 1 and creates a snapshot.
func (s *Service) ReadBootSector() (*geometry.BootSector, error) {
	st, data := s.ReadSector(0, 0, 1)
	if !st.OK() {
		return nil, st
	}
	return geometry.NewBootSector(data)
}

//
func (s *Service) retry(op func() Status) Status {
	var st Status
	for attempt := 0; attempt < s.retries; attempt++ {
		if st = op(); st.OK() {
			break
		}
		log.Tracef("disk service attempt %d failed: %s", attempt+1, st)
	}
	return st
}
