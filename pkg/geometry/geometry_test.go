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
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func bootSector(t *testing.T, bps, spt, sides int, t16 uint16, t32 uint32) *BootSector {
	t.Helper()
	raw := make([]byte, BootSectorLength)
	binary.LittleEndian.PutUint16(raw[0x0b:], uint16(bps))
	binary.LittleEndian.PutUint16(raw[0x13:], t16)
	binary.LittleEndian.PutUint16(raw[0x18:], uint16(spt))
	binary.LittleEndian.PutUint16(raw[0x1a:], uint16(sides))
	binary.LittleEndian.PutUint32(raw[0x20:], t32)
	b, err := NewBootSector(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestBootSectorAccessors(t *testing.T) {
	b := bootSector(t, 512, 18, 2, 2880, 0)
	if b.BytesPerSector() != 512 || b.SectorsPerTrack() != 18 || b.Sides() != 2 {
		t.Errorf("wrong fields: %s", b.Summary())
	}
	if b.TotalSectors() != 2880 {
		t.Errorf("want 2880 total sectors, got %d", b.TotalSectors())
	}
	if b.Uint16(0x13) != 2880 {
		t.Errorf("raw accessor: want 2880, got %d", b.Uint16(0x13))
	}
	if b.Uint16(BootSectorLength-1) != 0 {
		t.Error("out of range accessor should yield 0")
	}
}

func TestBootSectorTooShort(t *testing.T) {
	if _, err := NewBootSector(make([]byte, 100)); err == nil {
		t.Error("expected error for short boot sector")
	}
}

func TestBuildBootSector(t *testing.T) {
	raw, err := BuildBootSector(512, 9, 2, 1440)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewBootSector(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.TotalSectors16() != 1440 || b.SectorsPerTrack() != 9 || b.Sides() != 2 {
		t.Errorf("unexpected layout: %s", b.Summary())
	}
	if !b.HasExtendedSignature() || b.VolumeLabel() != "NO NAME    " {
		t.Errorf("missing extended fields: %s", b.Summary())
	}

	raw, err = BuildBootSector(512, 36, 2, 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ = NewBootSector(raw)
	if b.TotalSectors16() != 0 || b.TotalSectors32() != 100000 {
		t.Errorf("large disk should use 32 bit field: %s", b.Summary())
	}
}

func TestResolve(t *testing.T) {

	tests := []struct {
		name string
		in   Geometry
		boot *BootSector
		want Geometry
	}{
		{
			name: "1.44M from boot sector",
			boot: bootSector(t, 512, 18, 2, 2880, 0),
			want: Geometry{Value(512), Value(18), Value(80), Value(2)},
		},
		{
			name: "32 bit total sector fallback",
			boot: bootSector(t, 512, 18, 2, 0, 5760),
			want: Geometry{Value(512), Value(18), Value(160), Value(2)},
		},
		{
			name: "no boot sector",
			want: Geometry{Value(512), Unset(), Unset(), Value(2)},
		},
		{
			name: "no boot sector, sectors given",
			in:   Geometry{SectorsPerTrack: Value(9)},
			want: Geometry{Value(512), Value(9), Unset(), Value(2)},
		},
		{
			name: "side heuristic, small disk",
			boot: bootSector(t, 512, 9, 0, 720, 0),
			want: Geometry{Value(512), Value(9), Value(80), Value(1)},
		},
		{
			name: "side heuristic, large disk",
			boot: bootSector(t, 512, 9, 0, 1440, 0),
			want: Geometry{Value(512), Value(9), Value(80), Value(2)},
		},
		{
			name: "partial last track rounds up",
			boot: bootSector(t, 512, 9, 1, 721, 0),
			want: Geometry{Value(512), Value(9), Value(81), Value(1)},
		},
		{
			name: "user values win",
			in:   Geometry{Value(1024), Value(8), Value(77), Value(2)},
			boot: bootSector(t, 512, 18, 2, 2880, 0),
			want: Geometry{Value(1024), Value(8), Value(77), Value(2)},
		},
		{
			name: "odd side count from boot sector",
			in:   Geometry{Tracks: Value(40)},
			boot: bootSector(t, 512, 9, 4, 720, 0),
			want: Geometry{Value(512), Value(9), Value(40), Value(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Resolve(tt.boot)
			if got != tt.want {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolveTracksEighty(t *testing.T) {
	for _, boot := range []*BootSector{
		bootSector(t, 512, 18, 2, 2880, 0),
		bootSector(t, 512, 36, 2, 0, 5760),
	} {
		g := Geometry{}.Resolve(boot)
		if g.Tracks != Value(80) {
			t.Errorf("%s: want 80 tracks, got %v", boot.Summary(), g.Tracks)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	boot := bootSector(t, 512, 18, 2, 2880, 0)
	for _, g := range []Geometry{
		{Value(512), Value(18), Value(80), Value(2)},
		{Value(128), Value(26), Value(77), Value(1)},
		Geometry{}.Resolve(boot),
	} {
		if got := g.Resolve(boot); got != g {
			t.Errorf("resolve changed %v to %v", g, got)
		}
		if got := g.Resolve(nil); got != g {
			t.Errorf("resolve without boot sector changed %v to %v", g, got)
		}
	}
}

func TestValidate(t *testing.T) {

	g := Geometry{SectorBytes: Value(4096), Sides: Value(2)}
	err := g.Validate(FieldTracks, FieldSectorsPerTrack)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, msg := range []string{"track count", "sectors per track", "too large"} {
		if !strings.Contains(err.Error(), msg) {
			t.Errorf("missing '%s' in error: %v", msg, err)
		}
	}

	g = Geometry{Value(512), Value(18), Value(80), Value(2)}
	if err := g.Validate(FieldTracks, FieldSectorsPerTrack); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEmit(t *testing.T) {
	raw, _ := BuildBootSector(512, 18, 2, 2880)
	b, _ := NewBootSector(raw)
	var buf bytes.Buffer
	b.Emit(&buf)
	out := buf.String()
	for _, line := range []string{"Label: [NO NAME    ]", "Sectors per track:  18",
		"Total sectors:      2880"} {
		if !strings.Contains(out, line) {
			t.Errorf("missing '%s' in:\n%s", line, out)
		}
	}
	if strings.Contains(out, "Long total") {
		t.Error("long total sectors should only be shown if short count is 0")
	}
}

func TestParamString(t *testing.T) {
	g := Geometry{Tracks: Value(80)}
	if s := g.String(); s != "80 tracks, UNKNOWN sides, UNKNOWN sectors, UNKNOWN bytes" {
		t.Errorf("unexpected: %s", s)
	}
}
