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

package run

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/flompy/pkg/control"
	"github.com/xelalexv/flompy/pkg/fdc"
	"github.com/xelalexv/flompy/pkg/geometry"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve {--port|--image|--blockdev} ... [-a|--address {address}]
      [-b|--bytes {sector size}] [-r|--rate {data rate}] [-e|--encoding {mfm|fm}]`,
		"API server command",
		`
Use the serve command for running the API server. It gives access to the boot
sector, and to single sectors and tracks of the disk in the selected drive:

  GET /status
  GET /boot
  GET /sector/{track}/{side}/{sector}[?bytes={sector size}]
  GET /track/{track}/{side}[?timing=true]

Replies are plain text with hex dumps, or JSON when asked for with an Accept
header of application/json.`,
		`- Logging can be configured with these environment variables:

  LOG_FORMAT		set to 'json' for JSON logging
  LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
  LOG_METHODS		set to non-empty for including methods in log
  LOG_LEVEL		panic, fatal, error, warn, info, debug, trace

`+runnerHelpEpilogue, s.Run)

	def := fdc.DefaultConfig()

	s.AddBaseSettings()
	s.AddSetting(&s.Address, "address", "a", "FLOMPY_ADDRESS", "",
		"listen address of API server, port defaults to 8888", false)
	s.AddSetting(&s.Bytes, "bytes", "b", "", -1,
		"default bytes per sector (128-2048)", false)
	s.AddSetting(&s.Rate, "rate", "r", "", def.DataRate,
		"data rate for track reads (0-3 for 500, 300, 250, 1000 kbit/s)", false)
	s.AddSetting(&s.Encoding, "encoding", "e", "", def.Encoding.String(),
		"encoding for track reads, mfm or fm", false)

	return s
}

//
type Serve struct {
	//
	Runner
	//
	Address  string
	Bytes    int
	Rate     int
	Encoding string
}

//
func (s *Serve) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}
	if err := s.validateBase(); err != nil {
		return err
	}
	if err := intArg("bytes", s.Bytes, 128, geometry.MaxSectorSize); err != nil {
		return err
	}

	cfg := fdc.DefaultConfig()
	cfg.Device = s.Device
	cfg.DataRate = s.Rate
	enc, err := fdc.ParseEncoding(s.Encoding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArgs, err)
	}
	cfg.Encoding = enc
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrArgs, err)
	}

	im, stop, err := s.startImager(os.Stdout)
	if err != nil {
		return err
	}
	defer stop()

	boot, _ := im.BootSector()
	g := geometry.Geometry{SectorBytes: param(s.Bytes)}.ResolveSectorBytes(boot)

	wg := &sync.WaitGroup{}
	wg.Add(1)

	api := control.NewAPIServer(s.Address, im, cfg, g)
	go func() {
		defer wg.Done()
		if err := api.Serve(); err != nil {
			log.Errorf("API server closed with error: %v", err)
		} else {
			log.Info("API server stopped")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sigCount := 0
	done := make(chan bool)

	for {

		select {

		case sig := <-sigs: // interrupt signal
			log.WithField("signal", sig).Info("signal received")
			sigCount++

			switch sigCount {

			case 1:
				go func() {
					log.Info("shutting down, hit Ctrl-C twice to force exit...")
					api.Stop()
					wg.Wait()
					log.Info("flompy stopped")
					done <- true
				}()

			case 2:
				log.Warn("shutdown in progress, hit Ctrl-C again to force exit")

			default:
				log.Warn("forcing server to stop immediately")
				os.Exit(1)
			}

		case <-done: // shutdown sequence complete
			return nil
		}
	}
}
