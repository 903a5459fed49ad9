package data

import (
	_ "embed"
)

// DefaultSettingsJSON seeds the settings record of a fresh local store.
//
//go:embed defaults/settings.json
var DefaultSettingsJSON []byte
