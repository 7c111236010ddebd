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

package geometry

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/go-restruct/restruct"
)

// minimum length of a boot sector snapshot
const BootSectorLength = 512

// marks presence of volume ID and label
const ExtendedBootSignature = 0x29

// BIOS parameter block, as found at the start of a DOS boot sector
type bpb struct {
	Jump              [3]byte
	OEM               [8]byte
	BytesPerSector    uint16 // 0x0B
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATs              uint8
	RootEntries       uint16
	TotalSectors16    uint16 // 0x13
	Media             uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16 // 0x18
	Sides             uint16 // 0x1A
	HiddenSectors     uint32
	TotalSectors32    uint32 // 0x20
	DriveNumber       uint8
	Reserved          uint8
	ExtendedSignature uint8    // 0x26
	VolumeID          [4]byte  // 0x27
	VolumeLabel       [11]byte // 0x2B
	FSType            [8]byte
}

// BootSector is a read-only snapshot of the boot sector of a disk.
type BootSector struct {
	raw []byte
	bpb bpb
}

//
func NewBootSector(data []byte) (*BootSector, error) {

	if len(data) < BootSectorLength {
		return nil, fmt.Errorf(
			"boot sector too short: %d bytes, need %d", len(data), BootSectorLength)
	}

	ret := &BootSector{raw: make([]byte, len(data))}
	copy(ret.raw, data)

	if err := restruct.Unpack(ret.raw, binary.LittleEndian, &ret.bpb); err != nil {
		return nil, fmt.Errorf("error unpacking boot sector: %v", err)
	}

	return ret, nil
}

//
func (b *BootSector) BytesPerSector() uint16 {
	return b.bpb.BytesPerSector
}

//
func (b *BootSector) TotalSectors16() uint16 {
	return b.bpb.TotalSectors16
}

//
func (b *BootSector) TotalSectors32() uint32 {
	return b.bpb.TotalSectors32
}

// TotalSectors returns the 16 bit total sector count, or the 32 bit count if
// the former is zero.
func (b *BootSector) TotalSectors() uint32 {
	if b.bpb.TotalSectors16 != 0 {
		return uint32(b.bpb.TotalSectors16)
	}
	return b.bpb.TotalSectors32
}

//
func (b *BootSector) SectorsPerTrack() uint16 {
	return b.bpb.SectorsPerTrack
}

//
func (b *BootSector) Sides() uint16 {
	return b.bpb.Sides
}

//
func (b *BootSector) HasExtendedSignature() bool {
	return b.bpb.ExtendedSignature == ExtendedBootSignature
}

//
func (b *BootSector) VolumeID() [4]byte {
	return b.bpb.VolumeID
}

//
func (b *BootSector) VolumeLabel() string {
	return string(b.bpb.VolumeLabel[:])
}

// Uint16 fetches the little-endian 16 bit value at offset pos.
func (b *BootSector) Uint16(pos int) uint16 {
	if pos < 0 || pos+2 > len(b.raw) {
		return 0
	}
	return binary.LittleEndian.Uint16(b.raw[pos:])
}

//
func (b *BootSector) Raw() []byte {
	ret := make([]byte, len(b.raw))
	copy(ret, b.raw)
	return ret
}

//
func (b *BootSector) Emit(w io.Writer) {

	if b.HasExtendedSignature() {
		id := b.VolumeID()
		fmt.Fprintf(w, "$027 ID: % X\n", id[:])
		fmt.Fprintf(w, "$02B Label: [%s]\n", b.VolumeLabel())
	}

	fmt.Fprintf(w, "$00B Bytes per sector:   %d\n", b.BytesPerSector())
	fmt.Fprintf(w, "$013 Total sectors:      %d\n", b.TotalSectors16())
	fmt.Fprintf(w, "$018 Sectors per track:  %d\n", b.SectorsPerTrack())
	fmt.Fprintf(w, "$01A Sides:              %d\n", b.Sides())

	if b.TotalSectors16() == 0 {
		fmt.Fprintf(w, "$020 Long total sectors: %d\n", b.TotalSectors32())
	}
}

// Summary gives a one line description, e.g. for log output.
func (b *BootSector) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d bytes/sector, %d sectors/track, %d sides, %d total",
		b.BytesPerSector(), b.SectorsPerTrack(), b.Sides(), b.TotalSectors())
	if b.HasExtendedSignature() {
		fmt.Fprintf(&sb, ", label [%s]", strings.TrimSpace(b.VolumeLabel()))
	}
	return sb.String()
}

/*
	BuildBootSector creates a minimal boot sector announcing the given layout.
	Total sector counts beyond 16 bit range go into the 32 bit field.
*/
func BuildBootSector(bytesPerSector, sectorsPerTrack, sides int,
	total uint32) ([]byte, error) {

	b := bpb{
		Jump:              [3]byte{0xeb, 0x3c, 0x90},
		BytesPerSector:    uint16(bytesPerSector),
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		FATs:              2,
		RootEntries:       224,
		Media:             0xf0,
		SectorsPerTrack:   uint16(sectorsPerTrack),
		Sides:             uint16(sides),
		ExtendedSignature: ExtendedBootSignature,
		VolumeID:          [4]byte{0x12, 0x34, 0x56, 0x78},
	}
	copy(b.OEM[:], "FLOMPY  ")
	copy(b.VolumeLabel[:], "NO NAME    ")
	copy(b.FSType[:], "FAT12   ")

	if total <= 0xffff {
		b.TotalSectors16 = uint16(total)
	} else {
		b.TotalSectors32 = total
	}

	packed, err := restruct.Pack(binary.LittleEndian, &b)
	if err != nil {
		return nil, err
	}

	ret := make([]byte, BootSectorLength)
	copy(ret, packed)
	ret[510] = 0x55
	ret[511] = 0xaa
	return ret, nil
}
