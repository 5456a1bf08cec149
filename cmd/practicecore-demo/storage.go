package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/ports"
)

// settingsDoc is the on-disk JSON shape for ports.Settings. Pointer
// fields become *string/*string so an unset device or soundfont path
// round-trips as a missing key rather than an empty string.
type settingsDoc struct {
	SelectedMidiIn        *string `json:"selectedMidiIn,omitempty"`
	SelectedAudioOut      *string `json:"selectedAudioOut,omitempty"`
	AudioBufferSizeFrames *uint32 `json:"audioBufferSizeFrames,omitempty"`
	MonitorEnabled        bool    `json:"monitorEnabled"`
	MasterVolume          float32 `json:"masterVolume"`
	BusUserVolume         float32 `json:"busUserVolume"`
	BusAutopilotVolume    float32 `json:"busAutopilotVolume"`
	BusMetronomeVolume    float32 `json:"busMetronomeVolume"`
	InputOffsetMs         int32   `json:"inputOffsetMs"`
	DefaultSf2Path        *string `json:"defaultSf2Path,omitempty"`
	AudiverisPath         *string `json:"audiverisPath,omitempty"`
}

// jsonFileStorage is the reference ports.StoragePort backend: a single
// settings.json file in a user config directory.
type jsonFileStorage struct {
	path string
}

func newJSONFileStorage(path string) *jsonFileStorage {
	return &jsonFileStorage{path: path}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "practicecore-settings.json"
	}
	return filepath.Join(dir, "practicecore", "settings.json")
}

func (s *jsonFileStorage) LoadSettings() (ports.Settings, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ports.DefaultSettings(), nil
	}
	if err != nil {
		return ports.Settings{}, &ports.StorageError{Kind: ports.StorageErrIo, Message: err.Error(), Cause: err}
	}

	var doc settingsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return ports.Settings{}, &ports.StorageError{Kind: ports.StorageErrSerde, Message: err.Error(), Cause: err}
	}
	return docToSettings(doc), nil
}

func (s *jsonFileStorage) SaveSettings(settings ports.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &ports.StorageError{Kind: ports.StorageErrIo, Message: err.Error(), Cause: err}
	}

	data, err := json.MarshalIndent(settingsToDoc(settings), "", "  ")
	if err != nil {
		return &ports.StorageError{Kind: ports.StorageErrSerde, Message: err.Error(), Cause: err}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return &ports.StorageError{Kind: ports.StorageErrIo, Message: err.Error(), Cause: err}
	}
	return nil
}

func docToSettings(doc settingsDoc) ports.Settings {
	settings := ports.Settings{
		MonitorEnabled:     doc.MonitorEnabled,
		MasterVolume:       core.ClampVolume(doc.MasterVolume),
		BusUserVolume:      core.ClampVolume(doc.BusUserVolume),
		BusAutopilotVolume: core.ClampVolume(doc.BusAutopilotVolume),
		BusMetronomeVolume: core.ClampVolume(doc.BusMetronomeVolume),
		InputOffsetMs:      doc.InputOffsetMs,
		AudioBufferSizeFrames: doc.AudioBufferSizeFrames,
		DefaultSf2Path:     doc.DefaultSf2Path,
		AudiverisPath:      doc.AudiverisPath,
	}
	if doc.SelectedMidiIn != nil {
		id := ports.DeviceID(*doc.SelectedMidiIn)
		settings.SelectedMidiIn = &id
	}
	if doc.SelectedAudioOut != nil {
		id := ports.DeviceID(*doc.SelectedAudioOut)
		settings.SelectedAudioOut = &id
	}
	return settings
}

func settingsToDoc(settings ports.Settings) settingsDoc {
	doc := settingsDoc{
		MonitorEnabled:        settings.MonitorEnabled,
		MasterVolume:          settings.MasterVolume.Float32(),
		BusUserVolume:         settings.BusUserVolume.Float32(),
		BusAutopilotVolume:    settings.BusAutopilotVolume.Float32(),
		BusMetronomeVolume:    settings.BusMetronomeVolume.Float32(),
		InputOffsetMs:         settings.InputOffsetMs,
		AudioBufferSizeFrames: settings.AudioBufferSizeFrames,
		DefaultSf2Path:        settings.DefaultSf2Path,
		AudiverisPath:         settings.AudiverisPath,
	}
	if settings.SelectedMidiIn != nil {
		id := string(*settings.SelectedMidiIn)
		doc.SelectedMidiIn = &id
	}
	if settings.SelectedAudioOut != nil {
		id := string(*settings.SelectedAudioOut)
		doc.SelectedAudioOut = &id
	}
	return doc
}
