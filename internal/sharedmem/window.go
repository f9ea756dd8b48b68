// Package sharedmem parses and validates the fixed-layout header the host
// engine writes at the front of the shared-memory region it maps into the
// instrumented process, and exposes the CFG sub-window a Session codec
// operates on directly.
package sharedmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// magic identifies a cfgtrace shared-memory region ("CFGT" in ASCII).
const magic uint32 = 0x43464754

// formatVersion is the wire-format version this package understands.
const formatVersion uint32 = 1

// headerSize is magic:u32 + version:u32 + cfg_offset:u64 + capacity:u64 +
// logname_len:u64.
const headerSize = 4 + 4 + 8 + 8 + 8

var (
	ErrBadMagic         = errors.New("sharedmem: bad magic")
	ErrUnsupportedVersion = errors.New("sharedmem: unsupported format version")
	ErrTruncated        = errors.New("sharedmem: buffer smaller than header")
	ErrWindowOutOfRange = errors.New("sharedmem: cfg window exceeds region")
)

// Window is a parsed view over a shared-memory region: a header
// describing where the CFG codec window starts and how large it is,
// followed by an optional host-supplied log file path (the LOGNAME_BUFFER
// field of the original engine ABI).
type Window struct {
	region     []byte
	cfgOffset  uint64
	capacity   uint64
	logName    string
}

// Open parses region's header in place. region must remain valid and
// stable for the lifetime of the returned Window; no copy is made.
func Open(region []byte) (*Window, error) {
	if len(region) < headerSize {
		return nil, ErrTruncated
	}

	got := binary.LittleEndian.Uint32(region[0:4])
	if got != magic {
		return nil, fmt.Errorf("%w: got 0x%08X", ErrBadMagic, got)
	}
	version := binary.LittleEndian.Uint32(region[4:8])
	if version != formatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, formatVersion)
	}

	cfgOffset := binary.LittleEndian.Uint64(region[8:16])
	capacity := binary.LittleEndian.Uint64(region[16:24])
	lognameLen := binary.LittleEndian.Uint64(region[24:32])

	if cfgOffset > uint64(len(region)) || capacity > uint64(len(region))-cfgOffset {
		return nil, ErrWindowOutOfRange
	}

	lognameStart := uint64(headerSize)
	if lognameLen > uint64(len(region))-lognameStart {
		return nil, ErrTruncated
	}

	return &Window{
		region:    region,
		cfgOffset: cfgOffset,
		capacity:  capacity,
		logName:   string(region[lognameStart : lognameStart+lognameLen]),
	}, nil
}

// NewHeader writes a fresh header into region describing a CFG window of
// the given capacity starting immediately after any log-name bytes, and
// returns the parsed Window. Used by hosts that own the region layout
// (tests, and offline tools that fabricate a window file).
func NewHeader(region []byte, capacity uint64, logName string) (*Window, error) {
	lognameStart := uint64(headerSize)
	cfgOffset := lognameStart + uint64(len(logName))
	need := cfgOffset + capacity
	if uint64(len(region)) < need {
		return nil, fmt.Errorf("sharedmem: region too small: have %d, need %d", len(region), need)
	}

	binary.LittleEndian.PutUint32(region[0:4], magic)
	binary.LittleEndian.PutUint32(region[4:8], formatVersion)
	binary.LittleEndian.PutUint64(region[8:16], cfgOffset)
	binary.LittleEndian.PutUint64(region[16:24], capacity)
	binary.LittleEndian.PutUint64(region[24:32], uint64(len(logName)))
	copy(region[lognameStart:cfgOffset], logName)

	return &Window{region: region, cfgOffset: cfgOffset, capacity: capacity, logName: logName}, nil
}

// CFG returns the sub-slice of the region a cfg.Serialize/Deserialize call
// should read from or write into.
func (w *Window) CFG() []byte {
	return w.region[w.cfgOffset : w.cfgOffset+w.capacity]
}

// Capacity returns the CFG window's byte capacity W.
func (w *Window) Capacity() uint64 {
	return w.capacity
}

// LogName is the log file path the host engine requested, if any.
func (w *Window) LogName() string {
	return w.logName
}

// Region returns the full backing byte slice, header included. Used by
// callers that persist the region as a standalone file between runs.
func (w *Window) Region() []byte {
	return w.region
}
