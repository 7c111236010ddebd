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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/capture"
)

// SinkOpener opens the output of a run. It is only called once the run is
// known to be able to produce output.
type SinkOpener func() (io.WriteCloser, error)

// FileSink gives a SinkOpener that creates the named file.
func FileSink(path string) SinkOpener {
	return func() (io.WriteCloser, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		log.Infof("opened output file: %s", path)
		return f, nil
	}
}

/*
	Sink is the append-only output of a run. Sector units are written back to
	back. Track units are written as a 32 bit little-endian length, the raw
	bytes, and, with timing, one 16 bit little-endian elapsed tick value per
	byte.
*/
type Sink struct {
	w       *bufio.Writer
	c       io.Closer
	written int64
}

//
func NewSink(wc io.WriteCloser) *Sink {
	return &Sink{w: bufio.NewWriter(wc), c: wc}
}

//
func (s *Sink) Written() int64 {
	return s.written
}

//
func (s *Sink) WriteSector(data []byte) error {
	n, err := s.w.Write(data)
	s.written += int64(n)
	return err
}

// WriteTrack writes one track unit. Pass nil for elapsed when timing is off.
func (s *Sink) WriteTrack(data []byte, elapsed []uint16) error {

	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(data)))
	if _, err := s.w.Write(l[:]); err != nil {
		return err
	}
	s.written += 4

	n, err := s.w.Write(data)
	s.written += int64(n)
	if err != nil {
		return err
	}

	if elapsed != nil {
		if err := capture.WriteTicks(s.w, elapsed); err != nil {
			return err
		}
		s.written += 2 * int64(len(elapsed))
	}

	return nil
}

//
func (s *Sink) Close() error {
	err := s.w.Flush()
	if cErr := s.c.Close(); err == nil {
		err = cErr
	}
	return err
}

/*
	ReadTrackRecord reads back one track unit as written by WriteTrack. Timing
	is not recorded in the output, so the caller has to know whether the file
	was written in a timing mode. At the end of input, io.EOF is returned.
*/
func ReadTrackRecord(r io.Reader, timing bool) ([]byte, []uint16, error) {

	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, nil, err
	}

	n := binary.LittleEndian.Uint32(l[:])
	if n > capture.MaxTrackSize {
		return nil, nil, fmt.Errorf("track record of %d bytes exceeds maximum", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, nil, unexpectedEOF(err)
	}

	if !timing {
		return data, nil, nil
	}

	elapsed := make([]uint16, n)
	if err := binary.Read(r, binary.LittleEndian, elapsed); err != nil {
		return nil, nil, unexpectedEOF(err)
	}
	return data, elapsed, nil
}

// a record cut short is not a regular end of input
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
