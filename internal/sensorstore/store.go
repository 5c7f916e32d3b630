// Package sensorstore shares sensor readings between independent processes
// through a small memory-mapped file. Each sensor owns a fixed 32-byte
// big-endian record at a well-known offset; the first 4 bytes of every
// record are the unix timestamp of the last update, and each record has
// exactly one writer. There is no version field: producers and consumers
// agree on field order out of band.
package sensorstore

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// MapSize is the full size of the shared file.
	MapSize = 1024
	// RecordSize is the slot reserved for each sensor.
	RecordSize = 32
)

// Record offsets.
const (
	OffsetEVCharger = 0
	OffsetTelemetry = 32
	OffsetTariff    = 64
	OffsetHeatPump  = 128
	OffsetCarBattery = 192
	OffsetForecast  = 224
)

// Record is a fixed-layout sensor record with a reserved slot in the map.
type Record interface {
	RecordOffset() int
	// Encode writes the record into a RecordSize buffer. The timestamp
	// bytes b[0:4] are filled too, but Store.Save commits them last.
	Encode(b []byte) error
	Decode(b []byte)
}

// Store maps the shared sensor file. A read-only store can only Load.
type Store struct {
	data     []byte
	readOnly bool
}

// Open maps the sensor file at path, creating and sizing it when opened
// read-write.
func Open(path string, readOnly bool) (*Store, error) {
	flags := os.O_RDWR | os.O_CREATE
	prot := unix.PROT_READ | unix.PROT_WRITE
	if readOnly {
		flags = os.O_RDONLY
		prot = unix.PROT_READ
	}
	f, err := os.OpenFile(path, flags, 0o664)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !readOnly {
		if err := f.Truncate(MapSize); err != nil {
			return nil, err
		}
	}
	data, err := unix.Mmap(int(f.Fd()), 0, MapSize, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Store{data: data, readOnly: readOnly}, nil
}

func (s *Store) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}

// Load reads the record's slot from the map into r.
func (s *Store) Load(r Record) error {
	off := r.RecordOffset()
	if off < 0 || off+RecordSize > MapSize {
		return fmt.Errorf("sensorstore: record offset %d out of range", off)
	}
	r.Decode(s.data[off : off+RecordSize])
	return nil
}

// Save writes the record into its slot. The payload is committed before
// the timestamp so a concurrent reader never sees a fresh timestamp over
// stale fields.
func (s *Store) Save(r Record) error {
	if s.readOnly {
		return fmt.Errorf("sensorstore: store is read-only")
	}
	off := r.RecordOffset()
	if off < 0 || off+RecordSize > MapSize {
		return fmt.Errorf("sensorstore: record offset %d out of range", off)
	}
	var buf [RecordSize]byte
	if err := r.Encode(buf[:]); err != nil {
		return err
	}
	copy(s.data[off+4:off+RecordSize], buf[4:])
	copy(s.data[off:off+4], buf[:4])
	return nil
}

func putTimestamp(b []byte, ts uint32) {
	binary.BigEndian.PutUint32(b[0:4], ts)
}

func timestamp(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[0:4])
}

// checkInt16 guards encodes of out-of-range readings. The occasional bogus
// register value used to slip through as a pack failure; keep that an
// explicit, recoverable error.
func checkInt16(name string, v int) (int16, error) {
	if v < -32768 || v > 32767 {
		return 0, fmt.Errorf("sensorstore: %s value %d does not fit int16", name, v)
	}
	return int16(v), nil
}
