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

//go:build linux

package bios

import (
	"errors"
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// the Linux floppy driver always transfers 512 byte sectors
const blockDeviceSectorSize = 512

// struct floppy_struct from linux/fd.h
type floppyParams struct {
	Size    uint32
	Sect    uint32
	Head    uint32
	Track   uint32
	Stretch uint32
	Gap     uint8
	Rate    uint8
	Spec1   uint8
	FmtGap  uint8
	Name    uintptr
}

//
const (
	ioctlFDRESET  = 0x254 // _IO(2, 0x54)
	fdResetAlways = 2
)

// _IOR(2, 0x04, struct floppy_struct)
var ioctlFDGETPRM = uintptr(2<<30 | uint32(unsafe.Sizeof(floppyParams{}))<<16 |
	2<<8 | 0x04)

// BlockDevice is a Disk backed by a Linux floppy block device such as
// /dev/fd0. The kernel driver takes care of the controller, so this can only
// serve sector reads, not raw track captures.
type BlockDevice struct {
	path   string
	fd     int
	params floppyParams
}

//
func OpenBlockDevice(path string) (*BlockDevice, error) {

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open floppy device %s: %v", path, err)
	}

	ret := &BlockDevice{path: path, fd: fd}
	if err := ret.queryParams(); err != nil {
		unix.Close(fd)
		return nil, err
	}

	log.WithFields(log.Fields{
		"device":  path,
		"tracks":  ret.params.Track,
		"heads":   ret.params.Head,
		"sectors": ret.params.Sect,
	}).Debug("floppy device opened")

	return ret, nil
}

//
func (b *BlockDevice) queryParams() error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), ioctlFDGETPRM,
		uintptr(unsafe.Pointer(&b.params)))
	if errno != 0 {
		return fmt.Errorf("cannot get floppy parameters for %s: %v", b.path, errno)
	}
	return nil
}

//
func (b *BlockDevice) Close() error {
	return unix.Close(b.fd)
}

//
func (b *BlockDevice) Reset(device int) Status {
	if err := unix.IoctlSetInt(b.fd, ioctlFDRESET, fdResetAlways); err != nil {
		log.Debugf("floppy reset on %s failed: %v", b.path, err)
		return StatusResetFailed
	}
	// media may have changed, so geometry needs to be queried again
	if err := b.queryParams(); err != nil {
		log.Debug(err)
		return StatusNotReady
	}
	return StatusOK
}

//
func (b *BlockDevice) Read(device, cylinder, head, sector, count int,
	buf []byte) Status {

	spt := int(b.params.Sect)
	heads := int(b.params.Head)

	if sector < 1 || sector+count-1 > spt || head < 0 || head >= heads ||
		cylinder < 0 || cylinder >= int(b.params.Track) {
		return StatusSectorNotFound
	}

	length := count * blockDeviceSectorSize
	if length > len(buf) {
		return StatusBadCommand
	}

	lba := (cylinder*heads+head)*spt + sector - 1
	n, err := unix.Pread(b.fd, buf[:length], int64(lba*blockDeviceSectorSize))
	if err != nil {
		return statusFromErrno(err)
	}
	if n < length {
		return StatusSectorNotFound
	}
	return StatusOK
}

//
func statusFromErrno(err error) Status {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return StatusUndefined
	}
	switch errno {
	case unix.EIO:
		return StatusCRCError
	case unix.ENXIO, unix.ENODEV, unix.ENOMEDIUM:
		return StatusNotReady
	case unix.ETIMEDOUT:
		return StatusTimeout
	case unix.EINVAL:
		return StatusBadCommand
	default:
		return StatusUndefined
	}
}
