// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	sgIO           = 0x2285
	sgDxferNone    = -1
	sgDxferFromDev = -3
	sgInfoOkMask   = 0x1

	// _IOWR('N', 0x41, struct nvme_admin_cmd)
	nvmeIoctlAdminCmd = 0xC0484E41

	ataPassThrough16 = 0x85
	senseLength      = 32
)

// sg_io_hdr_t from <scsi/sg.h>
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// struct nvme_passthru_cmd from <linux/nvme_ioctl.h>
type nvmePassthruCmd struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
}

type sgioStatusError struct {
	scsiStatus   uint8
	hostStatus   uint16
	driverStatus uint16
	senseKey     uint8
}

func (e sgioStatusError) Error() string {
	return fmt.Sprintf("scsi status %#02x, host status %#02x, driver status %#02x, sense key %#x",
		e.scsiStatus, e.hostStatus, e.driverStatus, e.senseKey)
}

// SGIO talks to Linux block devices. ATA-style dialects are wrapped in a SCSI
// CDB and sent through SG_IO; native NVMe uses the admin passthrough ioctl.
// Dialects that only exist as Windows driver paths (miniport, CSMI,
// MegaRAID, RST) are rejected with ErrUnsupportedDialect so the cascade moves
// on.
type SGIO struct {
	mu  sync.Mutex
	fds map[string]int
}

func OpenSGIO() *SGIO {
	return &SGIO{fds: make(map[string]int)}
}

func (s *SGIO) fd(path string) (int, error) {
	if fd, ok := s.fds[path]; ok {
		return fd, nil
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0o600)
	if err != nil {
		return -1, err
	}
	s.fds[path] = fd
	return fd, nil
}

func (s *SGIO) Issue(ctx context.Context, cmd Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Fail(cmd, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fds == nil {
		return nil, Fail(cmd, ErrClosed)
	}

	path := cmd.Target.Path
	if cmd.Dialect == NVMeStorageQuery || cmd.Dialect == NVMeIntel || cmd.Dialect == NVMeSamsung {
		path = nvmeControllerPath(path)
	}
	fd, err := s.fd(path)
	if err != nil {
		return nil, Fail(cmd, err)
	}

	timeout := uint32(cmd.Dialect.Timeout().Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline).Milliseconds(); remaining > 0 && remaining < int64(timeout) {
			timeout = uint32(remaining)
		}
	}

	log.Trace().Str("command", cmd.String()).Msg("issuing device command")

	switch cmd.Dialect {
	case NVMeStorageQuery, NVMeIntel, NVMeSamsung:
		return Scoped(cmd.Length, func(buf []byte) error {
			return nvmeAdmin(fd, cmd, buf, timeout)
		})
	case NVMeASMedia, NVMeRealtek:
		cdb := nvmeBridgeCDB(cmd)
		return Scoped(cmd.Length, func(buf []byte) error {
			return sendCDB(fd, cdb, buf, timeout)
		})
	case PhysicalDrive, SAT, SATASM1352R, Sunplus, JMicron:
		cdb := ataCDB(cmd)
		return Scoped(cmd.Length, func(buf []byte) error {
			return sendCDB(fd, cdb, buf, timeout)
		})
	}
	return nil, Fail(cmd, ErrUnsupportedDialect)
}

func (s *SGIO) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for path, fd := range s.fds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", path, err)
		}
	}
	s.fds = nil
	return firstErr
}

func sendCDB(fd int, cdb []byte, buf []byte, timeout uint32) error {
	sense := make([]byte, senseLength)

	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: sgDxferNone,
		timeout:        timeout,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(sense)),
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&sense[0])),
	}
	if len(buf) > 0 {
		hdr.dxferDirection = sgDxferFromDev
		hdr.dxferLen = uint32(len(buf))
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), sgIO, uintptr(unsafe.Pointer(&hdr))); errno != 0 {
		if errno == unix.ETIMEDOUT {
			return ErrTimeout
		}
		return errno
	}

	if hdr.info&sgInfoOkMask != 0 {
		// ATA PASS-THROUGH with CK_COND returns the taskfile as recovered
		// error descriptor sense; that is not a failure.
		if isATAReturnDescriptor(sense[:hdr.sbLenWr]) {
			return nil
		}
		return sgioStatusError{
			scsiStatus:   hdr.status,
			hostStatus:   hdr.hostStatus,
			driverStatus: hdr.driverStatus,
			senseKey:     senseKey(sense[:hdr.sbLenWr]),
		}
	}
	return nil
}

func nvmeAdmin(fd int, cmd Command, buf []byte, timeout uint32) error {
	pt := nvmePassthruCmd{
		opcode:    uint8(cmd.Opcode),
		nsid:      0xFFFFFFFF,
		dataLen:   uint32(len(buf)),
		timeoutMs: timeout,
	}
	if len(buf) > 0 {
		pt.addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	switch cmd.Opcode {
	case OpNVMeIdentify:
		pt.nsid = 0
		pt.cdw10 = uint32(cmd.Feature)
	case OpNVMeGetLogPage:
		numd := uint32(len(buf)/4 - 1)
		pt.cdw10 = uint32(cmd.Feature) | (numd&0xFFFF)<<16
		pt.cdw11 = numd >> 16
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(&pt))); errno != 0 {
		if errno == unix.ETIMEDOUT {
			return ErrTimeout
		}
		return errno
	}
	return nil
}

// ataCDB encodes an ATA taskfile for the dialect's bridge.
func ataCDB(cmd Command) []byte {
	var feature, count, lbaLow, lbaMid, lbaHigh byte
	if cmd.Opcode == OpATASmart {
		feature = cmd.Feature
		count = 1
		lbaLow = 0
		lbaMid = 0x4F
		lbaHigh = 0xC2
	} else if cmd.Opcode == OpATAIdentify {
		count = 1
	}
	if cmd.Length == 0 {
		count = 0
	}

	switch cmd.Dialect {
	case Sunplus:
		cdb := make([]byte, 12)
		cdb[0] = 0xF8
		cdb[2] = 0x22
		if cmd.Length > 0 {
			cdb[3] = 0x10
		}
		cdb[4] = byte(cmd.Length >> 9)
		cdb[5] = feature
		cdb[6] = count
		cdb[7] = lbaLow
		cdb[8] = lbaMid
		cdb[9] = lbaHigh
		cdb[10] = 0xA0 | byte(cmd.Target.Port&1)<<4
		cdb[11] = byte(cmd.Opcode)
		return cdb
	case JMicron:
		cdb := make([]byte, 12)
		cdb[0] = 0xDF
		if cmd.Length > 0 {
			cdb[1] = 0x10
		}
		cdb[3] = byte(cmd.Length >> 8)
		cdb[4] = byte(cmd.Length)
		cdb[5] = feature
		cdb[6] = count
		cdb[7] = lbaLow
		cdb[8] = lbaMid
		cdb[9] = lbaHigh
		cdb[10] = 0xA0 | byte(cmd.Target.Port&1)<<4
		cdb[11] = byte(cmd.Opcode)
		return cdb
	}

	// SAT ATA PASS-THROUGH (16)
	cdb := make([]byte, 16)
	cdb[0] = ataPassThrough16
	if cmd.Length > 0 {
		cdb[1] = 0x04 << 1 // PIO data-in
		cdb[2] = 0x0E      // T_DIR in, BYTE_BLOCK, T_LENGTH in sector count
	} else {
		cdb[1] = 0x03 << 1 // non-data
		cdb[2] = 0x20      // CK_COND
	}
	cdb[4] = feature
	cdb[6] = count
	cdb[8] = lbaLow
	cdb[10] = lbaMid
	cdb[12] = lbaHigh
	if cmd.Dialect == SATASM1352R {
		cdb[13] = 0xA0 | byte(cmd.Target.Port&1)<<4
	}
	cdb[14] = byte(cmd.Opcode)
	return cdb
}

// nvmeBridgeCDB wraps an NVMe admin command in the vendor CDB of a USB to
// NVMe bridge.
func nvmeBridgeCDB(cmd Command) []byte {
	var cdw10 uint32
	switch cmd.Opcode {
	case OpNVMeIdentify:
		cdw10 = uint32(cmd.Feature)
	case OpNVMeGetLogPage:
		cdw10 = uint32(cmd.Feature) | uint32(cmd.Length/4-1)<<16
	}

	cdb := make([]byte, 16)
	if cmd.Dialect == NVMeASMedia {
		cdb[0] = 0xE6
		cdb[1] = byte(cmd.Opcode)
		cdb[3] = byte(cdw10)
		cdb[7] = byte(cdw10 >> 16)
		return cdb
	}
	cdb[0] = 0xE4
	cdb[1] = byte(cmd.Length)
	cdb[2] = byte(cmd.Length >> 8)
	cdb[3] = byte(cmd.Opcode)
	cdb[4] = byte(cdw10)
	cdb[7] = byte(cdw10 >> 16)
	return cdb
}

// nvmeControllerPath maps a namespace node (/dev/nvme0n1) to its controller
// character device (/dev/nvme0), which is where admin commands go.
func nvmeControllerPath(path string) string {
	if !strings.HasPrefix(path, "/dev/nvme") {
		return path
	}
	rest := strings.TrimPrefix(path, "/dev/nvme")
	if i := strings.IndexByte(rest, 'n'); i > 0 {
		return "/dev/nvme" + rest[:i]
	}
	return path
}

func senseKey(sense []byte) uint8 {
	if len(sense) < 3 {
		return 0
	}
	switch sense[0] & 0x7F {
	case 0x72, 0x73:
		return sense[1] & 0x0F
	default:
		return sense[2] & 0x0F
	}
}

// isATAReturnDescriptor matches descriptor format sense carrying an ATA
// status return descriptor with sense key RECOVERED ERROR.
func isATAReturnDescriptor(sense []byte) bool {
	return len(sense) >= 9 && sense[0]&0x7F == 0x72 && sense[1]&0x0F == 0x01 && sense[8] == 0x09
}
