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

package monitor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/xelalexv/flompy/pkg/geometry"
	"github.com/xelalexv/flompy/pkg/imager"
)

// map cell states
const (
	cellPending = '.'
	cellReading = 'o'
	cellGood    = '#'
	cellFailed  = 'X'
)

// lines above the unit map
const mapTop = 4

var legend = fmt.Sprintf("%c pending  %c reading  %c good  %c failed",
	cellPending, cellReading, cellGood, cellFailed)

/*
	Screen shows a map of all units of a run, one row per track, with the
	sides next to each other. Sector modes get a cell per sector, track modes
	one per side.
*/
type Screen struct {
	s    tcell.Screen
	lock sync.Mutex
	once sync.Once
	done chan struct{}
	//
	mode    imager.Mode
	geo     geometry.Geometry
	perSide int
	rows    [][]rune
	//
	current imager.Unit
	good    int
	failed  int
	status  string
}

// OpenScreen takes over the terminal.
func OpenScreen() (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return NewScreen(s), nil
}

// NewScreen creates a map display on an initialized tcell screen.
func NewScreen(s tcell.Screen) *Screen {
	s.DisableMouse()
	ret := &Screen{s: s, done: make(chan struct{})}
	go ret.eventLoop()
	return ret
}

// Close gives the terminal back.
func (sc *Screen) Close() {
	sc.once.Do(func() {
		close(sc.done)
		sc.s.PostEvent(tcell.NewEventInterrupt(nil))
		sc.lock.Lock()
		defer sc.lock.Unlock()
		sc.s.Fini()
	})
}

//
func (sc *Screen) eventLoop() {
	for {
		select {
		case <-sc.done:
			return
		default:
		}
		switch sc.s.PollEvent().(type) {
		case *tcell.EventResize:
			sc.lock.Lock()
			sc.s.Sync()
			sc.lock.Unlock()
		case *tcell.EventInterrupt, nil:
			return
		}
	}
}

//
func (sc *Screen) Start(mode imager.Mode, g geometry.Geometry) {

	sc.lock.Lock()
	defer sc.lock.Unlock()

	sc.mode = mode
	sc.geo = g
	sc.good, sc.failed = 0, 0
	sc.rows = nil
	sc.status = ""

	sc.perSide = 1
	if !mode.LowLevel() && g.SectorsPerTrack.Int() > 0 {
		sc.perSide = g.SectorsPerTrack.Int()
	}
	if mode.Whole() {
		for c := 0; c < g.Tracks.Int(); c++ {
			sc.row(c)
		}
	}

	sc.draw()
}

//
func (sc *Screen) Unit(u imager.Unit) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	sc.current = u
	// a failed pass is not covered up by a later one
	if sc.cell(u) != cellFailed {
		sc.set(u, cellReading)
	}
	sc.draw()
}

//
func (sc *Screen) Done(u imager.Unit, err error) {

	sc.lock.Lock()
	defer sc.lock.Unlock()

	if err != nil {
		sc.failed++
		sc.set(u, cellFailed)
		sc.status = fmt.Sprintf("%s error: %v", u, err)
	} else {
		sc.good++
		if sc.cell(u) != cellFailed {
			sc.set(u, cellGood)
		}
	}

	sc.draw()
}

//
func (sc *Screen) Finish(r *imager.Report, err error) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	if err != nil {
		sc.status = fmt.Sprintf("failed: %v", err)
	} else {
		sc.status = r.String()
	}
	sc.draw()
}

// row returns the map row of a track, creating rows as needed
func (sc *Screen) row(track int) []rune {
	for len(sc.rows) <= track {
		sides := sc.geo.Sides.Int()
		if sides < 1 || !sc.mode.Whole() {
			sides = 2
		}
		r := make([]rune, sides*sc.perSide)
		for ix := range r {
			r[ix] = cellPending
		}
		sc.rows = append(sc.rows, r)
	}
	return sc.rows[track]
}

//
func (sc *Screen) index(u imager.Unit) int {
	ix := u.Side * sc.perSide
	if u.Sector > 0 && sc.perSide > 1 {
		ix += u.Sector - 1
	}
	return ix
}

//
func (sc *Screen) cell(u imager.Unit) rune {
	if u.Track < 0 || u.Track >= len(sc.rows) {
		return cellPending
	}
	r := sc.rows[u.Track]
	if ix := sc.index(u); 0 <= ix && ix < len(r) {
		return r[ix]
	}
	return cellPending
}

//
func (sc *Screen) set(u imager.Unit, c rune) {
	if u.Track < 0 {
		return
	}
	r := sc.row(u.Track)
	if ix := sc.index(u); 0 <= ix && ix < len(r) {
		r[ix] = c
	}
}

// caller holds lock
func (sc *Screen) draw() {

	sc.s.Clear()
	w, h := sc.s.Size()

	title := fmt.Sprintf(" flompy %s ", sc.mode)
	putStr(sc.s, 0, 0, strings.Repeat("═", w))
	putStr(sc.s, (w-len(title))/2, 0, title)
	putStr(sc.s, 0, 1, sc.geo.String())
	putStr(sc.s, 0, 2, legend)

	y := mapTop
	for c, r := range sc.rows {
		if y >= h-2 {
			break
		}
		putStr(sc.s, 0, y, fmt.Sprintf("%02d %s", c, string(r)))
		y++
	}

	putStr(sc.s, 0, h-2, strings.Repeat("─", w))
	putStr(sc.s, 0, h-1, fmt.Sprintf("%s  good %d  failed %d  %s",
		sc.current, sc.good, sc.failed, sc.status))

	sc.s.Show()
}

//
func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	if x < 0 {
		x = 0
	}
	for i, r := range []rune(str) {
		if x+i >= w {
			break
		}
		s.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
