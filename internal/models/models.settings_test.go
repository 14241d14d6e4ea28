// FilePath: internal/models/models.settings_test.go
package models

import "testing"

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.ID != SettingsID {
		t.Errorf("id = %d, want singleton id %d", s.ID, SettingsID)
	}
	if s.TempMin > s.TempMax || s.HumidMin > s.HumidMax {
		t.Error("default bounds must be ordered")
	}
	if s.HumidTarget < s.HumidMin || s.HumidTarget > s.HumidMax {
		t.Error("default humidity target must lie within bounds")
	}
	if s.Version != 0 {
		t.Errorf("version = %d, want 0 before the first save", s.Version)
	}
}

func TestDevicePayload(t *testing.T) {
	s := DefaultSettings()
	s.MistCooldown = 120
	payload := s.DevicePayload()

	if payload["auto_mist_interval"] != 120 {
		t.Errorf("auto_mist_interval = %v, want the mist cooldown", payload["auto_mist_interval"])
	}
	if payload["auto_mist_enabled"] != true {
		t.Errorf("auto_mist_enabled = %v, want true", payload["auto_mist_enabled"])
	}

	// Display-only fields never reach the device.
	for _, key := range []string{"farm_name", "dark_mode", "temp_unit", "version"} {
		if _, ok := payload[key]; ok {
			t.Errorf("payload leaks display field %q", key)
		}
	}
}
