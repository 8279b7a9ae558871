// Package session persists a UTM parameter set in a session-scoped
// key-value medium. Every operation is best-effort: storage faults and
// corrupt records are logged and reported as absent or not-written, never
// returned as errors.
package session

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/utm"
)

// DefaultSlot is the slot used when none is given.
const DefaultSlot = "utm_parameters"

// checkKey is written and removed by IsAvailable.
const checkKey = "__tern_storage_check__"

// Medium is a synchronous string key-value store scoped to one browsing session.
type Medium interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Store reads and writes parameter sets through a Medium.
type Store struct {
	medium Medium
	logger *zap.Logger
}

// NewStore creates a Store. A nil medium behaves as permanently
// unavailable storage; a nil logger discards log output.
func NewStore(medium Medium, logger *zap.Logger) *Store {
	if medium == nil {
		medium = unavailableMedium{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{medium: medium, logger: logger}
}

// PutOptions controls Put.
type PutOptions struct {
	Slot   string     // default: DefaultSlot
	Format utm.Format // default: underscore
}

// GetOptions controls Get.
type GetOptions struct {
	Slot   string     // default: DefaultSlot
	Format utm.Format // unspecified returns keys as stored
}

func slotOrDefault(slot string) string {
	if slot == "" {
		return DefaultSlot
	}
	return slot
}

// Put converts p to opts.Format and writes it to the slot. An empty set is
// not written. Reports whether the write happened.
func (s *Store) Put(p utm.Params, opts PutOptions) bool {
	if len(p) == 0 {
		return false
	}
	slot := slotOrDefault(opts.Slot)
	format := opts.Format
	if format == "" {
		format = utm.FormatUnderscore
	}

	converted := utm.Convert(p, format)
	if !utm.IsValid(converted, format) {
		s.logger.Warn("refusing to store non-utm parameters", zap.String("slot", slot))
		return false
	}

	data, err := json.Marshal(converted)
	if err != nil {
		s.logger.Warn("failed to encode utm parameters", zap.String("slot", slot), zap.Error(err))
		return false
	}
	if err := s.medium.Set(slot, string(data)); err != nil {
		s.logger.Warn("failed to store utm parameters", zap.String("slot", slot), zap.Error(err))
		return false
	}
	return true
}

// Get reads the slot. A missing, undecodable, or structurally invalid record
// yields (nil, false).
func (s *Store) Get(opts GetOptions) (utm.Params, bool) {
	slot := slotOrDefault(opts.Slot)

	raw, ok := s.GetRaw(slot)
	if !ok {
		return nil, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.logger.Debug("discarding undecodable utm record", zap.String("slot", slot), zap.Error(err))
		return nil, false
	}
	if !utm.IsValid(decoded, "") {
		s.logger.Debug("discarding invalid utm record", zap.String("slot", slot))
		return nil, false
	}

	p := utm.FromMap(decoded.(map[string]any))
	if opts.Format != "" {
		p = utm.Convert(p, opts.Format)
	}
	return p, true
}

// GetRaw returns the stored string without decoding or validation.
func (s *Store) GetRaw(slot string) (string, bool) {
	slot = slotOrDefault(slot)
	raw, ok, err := s.medium.Get(slot)
	if err != nil {
		s.logger.Warn("failed to read utm parameters", zap.String("slot", slot), zap.Error(err))
		return "", false
	}
	return raw, ok
}

// Remove deletes the slot. Reports whether the delete succeeded.
func (s *Store) Remove(slot string) bool {
	slot = slotOrDefault(slot)
	if err := s.medium.Delete(slot); err != nil {
		s.logger.Warn("failed to remove utm parameters", zap.String("slot", slot), zap.Error(err))
		return false
	}
	return true
}

// Exists reports whether the slot holds a valid, non-empty parameter set.
func (s *Store) Exists(slot string) bool {
	p, ok := s.Get(GetOptions{Slot: slot})
	return ok && len(p) > 0
}

// IsAvailable tests the medium with a write/read/delete cycle.
func (s *Store) IsAvailable() bool {
	if err := s.medium.Set(checkKey, checkKey); err != nil {
		s.logger.Debug("session storage unavailable", zap.Error(err))
		return false
	}
	v, ok, err := s.medium.Get(checkKey)
	if err != nil || !ok || v != checkKey {
		s.logger.Debug("session storage check read failed", zap.Error(err))
		return false
	}
	if err := s.medium.Delete(checkKey); err != nil {
		s.logger.Debug("session storage check delete failed", zap.Error(err))
		return false
	}
	return true
}
