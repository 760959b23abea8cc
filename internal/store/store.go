// Package store persists the tracked-city list in a schema-versioned JSON
// envelope under a single well-known key.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"citywatch/internal/failure"
	"citywatch/internal/models"
)

// SchemaVersion is the envelope version this build reads and writes.
// Envelopes at any other version are treated as absent data.
const SchemaVersion = 1

const probeKey = "citywatch-probe"

// Envelope is the persisted form of the tracked-city list.
type Envelope struct {
	Version     int                  `json:"version"`
	Cities      []models.TrackedCity `json:"cities"`
	LastUpdated int64                `json:"lastUpdated"`
}

// Adapter mirrors the in-memory city list to a KV store. It is never a
// source of truth during a running session.
type Adapter struct {
	kv        KV
	key       string
	logger    *zap.Logger
	available bool
	now       func() time.Time
}

// NewAdapter probes the store with a write-then-remove smoke test. When the
// probe fails, all operations behave as if storage does not exist.
func NewAdapter(kv KV, key string, logger *zap.Logger) *Adapter {
	a := &Adapter{
		kv:     kv,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
	a.available = a.probe()
	if !a.available {
		logger.Warn("Storage unavailable, operating memory-only")
	}
	return a
}

func (a *Adapter) probe() bool {
	if a.kv == nil {
		return false
	}
	if err := a.kv.Set(probeKey, "1"); err != nil {
		return false
	}
	if err := a.kv.Delete(probeKey); err != nil {
		return false
	}
	return true
}

// Available reports whether the underlying store passed the smoke test.
func (a *Adapter) Available() bool {
	return a.available
}

// Load reads the persisted city list. It never fails: an unavailable
// store, absent record, structurally invalid envelope, or unexpected
// schema version all yield an empty list, and the latter two also trigger
// a best-effort clear of the stale record.
func (a *Adapter) Load() []models.TrackedCity {
	if !a.available {
		return nil
	}

	raw, ok, err := a.kv.Get(a.key)
	if err != nil || !ok {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		a.logger.Warn("Discarding unreadable city list", zap.Error(err))
		a.Clear()
		return nil
	}
	if !a.validEnvelope(env) {
		a.logger.Warn("Discarding invalid city list envelope",
			zap.Int("version", env.Version))
		a.Clear()
		return nil
	}

	return env.Cities
}

func (a *Adapter) validEnvelope(env Envelope) bool {
	if env.Version != SchemaVersion {
		return false
	}
	for _, city := range env.Cities {
		if !city.Valid() {
			return false
		}
	}
	return true
}

// Save writes a freshly stamped envelope. When storage is entirely
// unavailable it silently no-ops; when storage is available but the write
// fails it raises, with capacity exhaustion surfaced distinctly.
func (a *Adapter) Save(cities []models.TrackedCity) error {
	if !a.available {
		return nil
	}

	env := Envelope{
		Version:     SchemaVersion,
		Cities:      cities,
		LastUpdated: a.now().UnixMilli(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return failure.New(failure.StorageUnavailable, err)
	}

	if err := a.kv.Set(a.key, string(raw)); err != nil {
		if errors.Is(err, ErrCapacity) {
			return failure.New(failure.StorageCapacity, err)
		}
		return failure.New(failure.StorageUnavailable, err)
	}
	return nil
}

// Clear removes the envelope; a missing record is not an error.
func (a *Adapter) Clear() {
	if !a.available {
		return
	}
	if err := a.kv.Delete(a.key); err != nil {
		a.logger.Warn("Failed to clear stored city list", zap.Error(err))
	}
}
