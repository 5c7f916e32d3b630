// Package port declares the narrow interfaces the core depends on.
package port

import (
	"givmon/internal/sensorstore"
)

// SensorStore is the shared memory-mapped record store as seen by the
// controller: it reads other sensors' slots and writes only its own.
type SensorStore interface {
	Load(r sensorstore.Record) error
	Save(r sensorstore.Record) error
}
