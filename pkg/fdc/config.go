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
	"fmt"
	"strings"
	"time"
)

//
type Encoding int

const (
	MFM Encoding = iota
	FM
)

//
func (e Encoding) String() string {
	switch e {
	case MFM:
		return "mfm"
	case FM:
		return "fm"
	default:
		return "<unknown>"
	}
}

//
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "mfm", "":
		return MFM, nil
	case "fm":
		return FM, nil
	default:
		return MFM, fmt.Errorf("unknown encoding: %s", s)
	}
}

// sizeCode is the largest sector size code N supported by the encoding
func (e Encoding) sizeCode() byte {
	if e == FM {
		return 6
	}
	return 7
}

//
func (e Encoding) gap() byte {
	if e == FM {
		return 0x07
	}
	return 0x1b
}

//
func (e Encoding) flag() byte {
	if e == FM {
		return 0
	}
	return FlagMFM
}

// data rates selectable via CCR, in kbit/s
var DataRates = []int{500, 300, 250, 1000}

// retry ceilings
const (
	CalibrateRetries = 4
	SeekRetries      = 4
	ReadRetries      = 4
)

// Config holds the parameters of a low level session.
type Config struct {
	Device   int // drive 0 through 3
	DataRate int // CCR value, see DataRates
	Encoding Encoding
	// timing parameters as programmed with the SPECIFY command
	StepRate   byte // 4 bits
	HeadUnload byte // 4 bits
	HeadLoad   byte // 7 bits
	// capture per byte timing
	Timing bool
	// bound for waiting on interrupts, in system ticks
	Timeout uint32
	//
	MotorDelay  time.Duration
	SettleDelay time.Duration
}

//
func DefaultConfig() Config {
	return Config{
		DataRate:    1,
		Encoding:    MFM,
		StepRate:    0x0c,
		HeadUnload:  0x0f,
		HeadLoad:    0x02,
		Timeout:     36,
		MotorDelay:  500 * time.Millisecond,
		SettleDelay: 15 * time.Millisecond,
	}
}

//
func (c *Config) Validate() error {
	if c.Device < 0 || c.Device > 3 {
		return fmt.Errorf("invalid drive %d, must be 0 through 3", c.Device)
	}
	if c.DataRate < 0 || c.DataRate >= len(DataRates) {
		return fmt.Errorf("invalid data rate %d, must be 0 through %d",
			c.DataRate, len(DataRates)-1)
	}
	if c.StepRate > 0x0f || c.HeadUnload > 0x0f || c.HeadLoad > 0x7f {
		return fmt.Errorf("timing parameters out of range: step %d, "+
			"head unload %d, head load %d", c.StepRate, c.HeadUnload, c.HeadLoad)
	}
	if c.Timeout == 0 {
		return fmt.Errorf("interrupt timeout must not be zero")
	}
	return nil
}
