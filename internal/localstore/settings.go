package localstore

import (
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
	"github.com/localnerve/crmsync/data"
	"github.com/localnerve/crmsync/internal/models"
)

func defaultSettings() models.Settings {
	var def models.Settings
	if err := json.Unmarshal(data.DefaultSettingsJSON, &def); err != nil {
		panic(fmt.Sprintf("embedded default settings are invalid: %v", err))
	}
	return def
}

// Settings returns the stored settings with unset fields filled from the
// embedded defaults.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	raw := s.readLocked(models.CollectionSettings)
	s.mu.Unlock()
	return s.withDefaults(raw)
}

func (s *Store) withDefaults(raw []byte) models.Settings {
	var stored models.Settings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			s.log.WithError(err).Warn("Corrupted settings, using defaults")
			stored = models.Settings{}
		}
	}
	if err := mergo.Merge(&stored, defaultSettings()); err != nil {
		s.log.WithError(err).Warn("Failed to apply default settings")
	}
	return stored
}

// SaveSettings merges patch over the stored settings.
func (s *Store) SaveSettings(patch models.Settings) (models.Settings, error) {
	now := models.Timestamp(s.now())

	s.mu.Lock()
	var current models.Settings
	if raw := s.readLocked(models.CollectionSettings); len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			s.log.WithError(err).Warn("Corrupted settings, overwriting")
			current = models.Settings{}
		}
	}
	merged, err := mergeRecord[models.Settings](&current, patch)
	if err != nil {
		s.mu.Unlock()
		return models.Settings{}, fmt.Errorf("merge settings: %w", err)
	}
	merged.UpdatedAt = now
	if err := s.validate.Struct(&merged); err != nil {
		s.mu.Unlock()
		return models.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		s.mu.Unlock()
		return models.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	werr := s.writeLocked(models.CollectionSettings, raw)
	aerr := s.appendActivityLocked("settings", "updated", "", "", now)
	s.mu.Unlock()

	s.report(werr, aerr)
	s.changed()
	return s.withDefaults(raw), nil
}
