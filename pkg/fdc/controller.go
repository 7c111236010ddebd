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

package fdc

import (
	log "github.com/sirupsen/logrus"
)

/*
	Controller guards a floppy controller, given by its Hardware, so that at
	most one Session can own it at any time.
*/
type Controller struct {
	hw   Hardware
	lock chan bool
}

//
func NewController(hw Hardware) *Controller {
	return &Controller{hw: hw, lock: make(chan bool, 1)}
}

//
func (c *Controller) Hardware() Hardware {
	return c.hw
}

/*
	Open acquires the controller and opens a session with the given config. If
	it fails, the controller has already been returned to its previous state,
	and a later Open starts from scratch.
*/
func (c *Controller) Open(cfg Config) (*Session, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	select {
	case c.lock <- true:
	default:
		return nil, StatusBusy
	}

	s := &Session{ctrl: c, hw: c.hw, cfg: cfg}
	if err := s.open(); err != nil {
		log.WithField("drive", cfg.Device).Errorf(
			"cannot open low level session: %v", err)
		return nil, err
	}

	return s, nil
}

//
func (c *Controller) release() {
	select {
	case <-c.lock:
	default:
		log.Debug("controller was already released")
	}
}
