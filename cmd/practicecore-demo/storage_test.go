package main

import (
	"path/filepath"
	"testing"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/ports"
)

func TestJSONFileStorageLoadSettingsMissingFileReturnsDefaults(t *testing.T) {
	storage := newJSONFileStorage(filepath.Join(t.TempDir(), "nope", "settings.json"))

	settings, err := storage.LoadSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings != ports.DefaultSettings() {
		t.Errorf("got %+v, want defaults %+v", settings, ports.DefaultSettings())
	}
}

func TestJSONFileStorageRoundTripsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	storage := newJSONFileStorage(path)

	midiID := ports.DeviceID("keys")
	audioID := ports.DeviceID("default")
	sf2 := "/path/to/piano.sf2"

	settings := ports.Settings{
		SelectedMidiIn:     &midiID,
		SelectedAudioOut:   &audioID,
		MonitorEnabled:     true,
		MasterVolume:       core.ClampVolume(0.5),
		BusUserVolume:      core.ClampVolume(0.7),
		BusAutopilotVolume: core.ClampVolume(0.3),
		BusMetronomeVolume: core.ClampVolume(0.6),
		InputOffsetMs:      -25,
		DefaultSf2Path:     &sf2,
	}

	if err := storage.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	loaded, err := storage.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if loaded.MonitorEnabled != settings.MonitorEnabled {
		t.Errorf("MonitorEnabled = %v, want %v", loaded.MonitorEnabled, settings.MonitorEnabled)
	}
	if loaded.MasterVolume != settings.MasterVolume {
		t.Errorf("MasterVolume = %v, want %v", loaded.MasterVolume, settings.MasterVolume)
	}
	if loaded.InputOffsetMs != settings.InputOffsetMs {
		t.Errorf("InputOffsetMs = %v, want %v", loaded.InputOffsetMs, settings.InputOffsetMs)
	}
	if loaded.SelectedMidiIn == nil || *loaded.SelectedMidiIn != midiID {
		t.Errorf("SelectedMidiIn = %v, want %v", loaded.SelectedMidiIn, midiID)
	}
	if loaded.SelectedAudioOut == nil || *loaded.SelectedAudioOut != audioID {
		t.Errorf("SelectedAudioOut = %v, want %v", loaded.SelectedAudioOut, audioID)
	}
	if loaded.DefaultSf2Path == nil || *loaded.DefaultSf2Path != sf2 {
		t.Errorf("DefaultSf2Path = %v, want %v", loaded.DefaultSf2Path, sf2)
	}
}

func TestJSONFileStorageSaveSettingsCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "settings.json")
	storage := newJSONFileStorage(path)

	if err := storage.SaveSettings(ports.DefaultSettings()); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if _, err := storage.LoadSettings(); err != nil {
		t.Fatalf("LoadSettings after save failed: %v", err)
	}
}
