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

package emulator

import (
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/bios"
)

//
func (m *Machine) drive(device int) *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	if 0 <= device && device < len(m.drives) {
		return m.drives[device]
	}
	return nil
}

// Reset implements bios.Disk. It fails if there is no disk in the drive.
func (m *Machine) Reset(device int) bios.Status {
	if m.drive(device) == nil {
		return bios.StatusTimeout
	}
	m.mu.Lock()
	m.sectorReads = 0
	m.mu.Unlock()
	return bios.StatusOK
}

/*
	Read implements bios.Disk. Sectors are read one after the other, starting
	at the given one, and the first failing sector ends the read. Nothing is
	transferred for the failing sector, so the buffer keeps what was there.
*/
func (m *Machine) Read(device, cylinder, head, sector, count int,
	buf []byte) bios.Status {

	disk := m.drive(device)
	if disk == nil {
		return bios.StatusTimeout
	}

	for k := 0; k < count; k++ {

		s := sector + k
		if !disk.contains(cylinder, head, s) {
			return bios.StatusSectorNotFound
		}

		off := k * disk.SectorSize
		if off+disk.SectorSize > len(buf) {
			return bios.StatusBadCommand
		}

		m.mu.Lock()
		m.sectorReads++
		m.mu.Unlock()

		if st := disk.readFault(cylinder, head, s); !st.OK() {
			log.WithFields(log.Fields{
				"cylinder": cylinder, "head": head, "sector": s,
			}).Tracef("emulator: sector read failed: %v", st)
			return st
		}
		copy(buf[off:], disk.Sector(cylinder, head, s))
	}

	return bios.StatusOK
}

// SectorReads gives the number of sector read attempts since the last reset.
func (m *Machine) SectorReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sectorReads
}
