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
	"bytes"
	"testing"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/geometry"
)

//
func patterned(tracks, sides, sectors, size int) *Image {
	img := NewImage(tracks, sides, sectors, size)
	for c := 0; c < tracks; c++ {
		for h := 0; h < sides; h++ {
			for s := 1; s <= sectors; s++ {
				d := img.Sector(c, h, s)
				for ix := range d {
					d[ix] = byte(c<<4 | h<<3 | s)
				}
			}
		}
	}
	return img
}

//
func TestNewImageFromBootSector(t *testing.T) {

	boot, err := geometry.BuildBootSector(512, 9, 2, 720)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]byte, 720*512)
	copy(data, boot)

	img, err := NewImageFromData(data)
	if err != nil {
		t.Fatal(err)
	}
	if img.Tracks != 40 || img.Sides != 2 || img.SectorsPerTrack != 9 ||
		img.SectorSize != 512 {
		t.Errorf("wrong layout: %d/%d/%d/%d", img.Tracks, img.Sides,
			img.SectorsPerTrack, img.SectorSize)
	}
}

//
func TestNewImageFromSize(t *testing.T) {

	img, err := NewImageFromData(make([]byte, 1474560))
	if err != nil {
		t.Fatal(err)
	}
	if img.Tracks != 80 || img.Sides != 2 || img.SectorsPerTrack != 18 {
		t.Errorf("wrong layout: %d/%d/%d", img.Tracks, img.Sides,
			img.SectorsPerTrack)
	}

	if _, err := NewImageFromData(make([]byte, 1000)); err == nil {
		t.Error("odd sized image accepted")
	}
}

//
func TestRead(t *testing.T) {

	img := patterned(2, 2, 4, 256)
	m := NewMachine(img, 0)

	if st := m.Reset(0); !st.OK() {
		t.Fatalf("reset failed: %v", st)
	}
	if st := m.Reset(1); st != bios.StatusTimeout {
		t.Errorf("reset of empty drive: %v", st)
	}

	buf := make([]byte, 512)
	if st := m.Read(0, 1, 1, 3, 2, buf); !st.OK() {
		t.Fatalf("read failed: %v", st)
	}
	if buf[0] != 0x1b || buf[255] != 0x1b || buf[256] != 0x1c {
		t.Errorf("wrong data: %02x %02x %02x", buf[0], buf[255], buf[256])
	}
	if n := m.SectorReads(); n != 2 {
		t.Errorf("expected 2 sector reads, got %d", n)
	}

	if st := m.Read(0, 0, 0, 5, 1, buf); st != bios.StatusSectorNotFound {
		t.Errorf("read beyond track: %v", st)
	}
	if st := m.Read(0, 2, 0, 1, 1, buf); st != bios.StatusSectorNotFound {
		t.Errorf("read beyond disk: %v", st)
	}
}

//
func TestReadFaults(t *testing.T) {

	img := patterned(1, 1, 4, 128)
	img.SetBadSector(0, 0, 2, bios.StatusNoAddressMark)
	img.SetFlakySector(0, 0, 3, 2)
	m := NewMachine(img, 0)

	buf := bytes.Repeat([]byte{0xe5}, 128)
	if st := m.Read(0, 0, 0, 2, 1, buf); st != bios.StatusNoAddressMark {
		t.Errorf("bad sector read: %v", st)
	}
	if buf[0] != 0xe5 {
		t.Error("failed read transferred data")
	}

	for ix := 0; ix < 2; ix++ {
		if st := m.Read(0, 0, 0, 3, 1, buf); st != bios.StatusCRCError {
			t.Errorf("flaky read %d: %v", ix, st)
		}
	}
	if st := m.Read(0, 0, 0, 3, 1, buf); !st.OK() {
		t.Errorf("flaky sector did not recover: %v", st)
	}

	img.SetBlankTrack(0, 0)
	if st := m.Read(0, 0, 0, 1, 1, buf); st != bios.StatusNoAddressMark {
		t.Errorf("blank track read: %v", st)
	}
}

//
func TestTrackStream(t *testing.T) {

	img := patterned(1, 2, 3, 128)
	raw, jitter := img.trackStream(0, 1)
	if jitter != nil {
		t.Error("jitter on a stable track")
	}

	if !bytes.Equal(raw[:128], img.Sector(0, 1, 1)) {
		t.Error("stream does not start with first sector")
	}
	for s := 2; s <= 3; s++ {
		if !bytes.Contains(raw, img.Sector(0, 1, s)) {
			t.Errorf("sector %d missing from stream", s)
		}
	}
	id := []byte{markSync, markSync, markSync, markID, 0, 1, 2, 0}
	if !bytes.Contains(raw, id) {
		t.Error("ID field of sector 2 missing")
	}

	if raw, _ := img.trackStream(1, 0); raw != nil {
		t.Error("stream for missing track")
	}

	img.SetBlankTrack(0, 0)
	if raw, _ := img.trackStream(0, 0); raw != nil {
		t.Error("stream for blank track")
	}
}

//
func TestFuzzyByte(t *testing.T) {

	img := patterned(1, 1, 2, 128)
	img.SetFuzzyByte(0, 0, 10)

	a, ja := img.trackStream(0, 0)
	b, jb := img.trackStream(0, 0)

	if a[10] == b[10] {
		t.Error("fuzzy byte is stable")
	}
	if ja[10] == 0 || jb[10] == 0 || ja[10] == jb[10] {
		t.Errorf("fuzzy byte timing is stable: %d, %d", ja[10], jb[10])
	}
	for ix, j := range ja {
		if ix != 10 && j != 0 {
			t.Fatalf("jitter outside of fuzzy byte at %d", ix)
		}
	}
	a[10], b[10] = 0, 0
	if !bytes.Equal(a, b) {
		t.Error("stream differs outside of fuzzy byte")
	}
}

//
func TestCRC16(t *testing.T) {
	// check value of CRC-16/CCITT-FALSE
	if crc := crc16([]byte("123456789")); crc != 0x29b1 {
		t.Errorf("wrong CRC: %04x", crc)
	}
}

//
func TestSizeCode(t *testing.T) {
	for size, want := range map[int]byte{128: 0, 256: 1, 512: 2, 1024: 3} {
		if n := sizeCode(size); n != want {
			t.Errorf("size %d: want %d, got %d", size, want, n)
		}
	}
}
