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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xelalexv/flompy/pkg/bios"
	"github.com/xelalexv/flompy/pkg/emulator"
	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
)

//
type rig struct {
	api  *api
	ctrl *fdc.Controller
	img  *emulator.Image
}

//
func newRig(t *testing.T, boot bool, low bool,
	prep ...func(*emulator.Image)) *rig {

	t.Helper()

	img := emulator.NewImage(2, 2, 3, 256)
	for c := 0; c < 2; c++ {
		for h := 0; h < 2; h++ {
			for s := 1; s <= 3; s++ {
				d := img.Sector(c, h, s)
				for ix := range d {
					d[ix] = byte(c<<4 | h<<3 | s)
				}
			}
		}
	}
	if boot {
		b, err := geometry.BuildBootSector(256, 3, 2, 12)
		if err != nil {
			t.Fatal(err)
		}
		copy(img.Sector(0, 0, 1), b)
	}
	for _, p := range prep {
		p(img)
	}

	m := emulator.NewMachine(img, 5*time.Millisecond)
	t.Cleanup(m.Wait)

	var ctrl *fdc.Controller
	if low {
		ctrl = fdc.NewController(m)
	}
	im := imager.New(bios.NewService(m, 0, 0), ctrl)
	im.SetOutput(io.Discard)
	if err := im.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	cfg := fdc.DefaultConfig()
	cfg.Timeout = 40
	cfg.MotorDelay = 0
	cfg.SettleDelay = 0

	g := geometry.Geometry{SectorBytes: geometry.Value(256)}
	a := NewAPIServer("", im, cfg, g).(*api)

	return &rig{api: a, ctrl: ctrl, img: img}
}

//
func (r *rig) get(path string, json bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if json {
		req.Header.Set("Accept", "application/json")
	}
	rec := httptest.NewRecorder()
	r.api.router().ServeHTTP(rec, req)
	return rec
}

//
func TestStatus(t *testing.T) {

	r := newRig(t, true, true)

	rec := r.get("/status", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", rec.Code)
	}

	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.LowLevel || !strings.Contains(st.Boot, "3 sectors/track") {
		t.Errorf("unexpected status: %+v", st)
	}

	rec = r.get("/status", false)
	if !strings.Contains(rec.Body.String(), "low level:   available") {
		t.Errorf("unexpected text status:\n%s", rec.Body.String())
	}
}

//
func TestBoot(t *testing.T) {

	r := newRig(t, true, false)

	rec := r.get("/boot", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", rec.Code)
	}
	var info BootInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.BytesPerSector != 256 || info.SectorsPerTrack != 3 ||
		info.Sides != 2 || info.VolumeID != "12345678" {
		t.Errorf("unexpected boot info: %+v", info)
	}

	rec = r.get("/boot", false)
	if !strings.Contains(rec.Body.String(), "$018 Sectors per track:  3") {
		t.Errorf("unexpected boot text:\n%s", rec.Body.String())
	}

	unreadable := func(img *emulator.Image) {
		img.SetBadSector(0, 0, 1, bios.StatusCRCError)
	}
	r = newRig(t, true, false, unreadable)
	if rec := r.get("/boot", false); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unreadable boot sector: unexpected status code %d", rec.Code)
	}
	rec = r.get("/status", true)
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Boot == "" || strings.Contains(st.Boot, "sectors/track") {
		t.Errorf("unexpected boot status: %q", st.Boot)
	}
}

//
func TestSector(t *testing.T) {

	r := newRig(t, false, false)
	r.img.SetBadSector(1, 0, 2, bios.StatusCRCError)

	tests := []struct {
		path   string
		code   int
		status bios.Status
		first  byte
		length int
	}{
		{"/sector/1/1/3", http.StatusOK, bios.StatusOK, 0x1b, 256},
		{"/sector/0/0/2?bytes=128", http.StatusOK, bios.StatusOK, 0x02, 128},
		{"/sector/1/0/2", http.StatusOK, bios.StatusCRCError, 0, 256},
		{"/sector/0/0/1?bytes=4096", http.StatusUnprocessableEntity, 0, 0, 0},
		{"/sector/0/2/1", http.StatusNotFound, 0, 0, 0},
		{"/sector/300/0/1", http.StatusUnprocessableEntity, 0, 0, 0},
	}

	for _, tt := range tests {
		rec := r.get(tt.path, true)
		if rec.Code != tt.code {
			t.Errorf("%s: expected code %d, got %d", tt.path, tt.code, rec.Code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var rep SectorReply
		if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
			t.Fatal(err)
		}
		if bios.Status(rep.Status) != tt.status || len(rep.Data) != tt.length {
			t.Errorf("%s: unexpected reply %+v", tt.path, rep)
			continue
		}
		if tt.status.OK() && rep.Data[0] != tt.first {
			t.Errorf("%s: unexpected data %02x", tt.path, rep.Data[0])
		}
		if !tt.status.OK() && rep.Error == "" {
			t.Errorf("%s: error text missing", tt.path)
		}
	}

	rec := r.get("/sector/0/1/1", false)
	if !strings.HasPrefix(rec.Body.String(), "00:01:01 ok\n") {
		t.Errorf("unexpected text reply:\n%s", rec.Body.String())
	}
}

//
func TestTrack(t *testing.T) {

	r := newRig(t, false, true)
	r.img.SetBlankTrack(1, 1)

	rec := r.get("/track/0/1?timing=true", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d: %s", rec.Code, rec.Body.String())
	}
	var rep TrackReply
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Length == 0 || rep.Length != len(rep.Data) ||
		len(rep.Elapsed) != rep.Length {
		t.Errorf("unexpected track reply: length %d, data %d, elapsed %d",
			rep.Length, len(rep.Data), len(rep.Elapsed))
	}

	rec = r.get("/track/0/0", true)
	rep = TrackReply{}
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Elapsed) != 0 {
		t.Errorf("timing delivered without being asked for")
	}

	if rec := r.get("/track/1/1", false); rec.Code !=
		http.StatusUnprocessableEntity {
		t.Errorf("blank track: unexpected status code %d", rec.Code)
	}
}

//
func TestTrackErrors(t *testing.T) {

	r := newRig(t, false, false)
	if rec := r.get("/track/0/0", false); rec.Code != http.StatusNotImplemented {
		t.Errorf("no low level access: unexpected status code %d", rec.Code)
	}

	r = newRig(t, false, true)
	s, err := r.ctrl.Open(r.api.low)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	if rec := r.get("/track/0/0", false); rec.Code != http.StatusLocked {
		t.Errorf("controller in use: unexpected status code %d", rec.Code)
	}
}
