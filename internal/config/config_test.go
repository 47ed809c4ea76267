package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DETECTION_FPS", "")
	t.Setenv("CAMERA_NAMES", "")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.CustomInputSize != 416 {
		t.Errorf("expected default input size 416, got %d", cfg.CustomInputSize)
	}
	if cfg.AlertInterval != 10*time.Second {
		t.Errorf("expected default alert interval 10s, got %v", cfg.AlertInterval)
	}
	if len(cfg.CameraNames) != 0 {
		t.Errorf("expected no camera names, got %v", cfg.CameraNames)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CUSTOM_CONFIDENCE", "0.65")
	t.Setenv("DETECTION_AUTOSTART", "false")
	t.Setenv("ALERT_INTERVAL", "1m")
	t.Setenv("CAMERA_NAMES", "192.168.1.10=front, 192.168.1.11 = back,broken,=x")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.CustomConfidence != 0.65 {
		t.Errorf("expected confidence 0.65, got %v", cfg.CustomConfidence)
	}
	if cfg.DetectionAutostart {
		t.Error("expected autostart disabled")
	}
	if cfg.AlertInterval != time.Minute {
		t.Errorf("expected 1m alert interval, got %v", cfg.AlertInterval)
	}

	expected := map[string]string{"192.168.1.10": "front", "192.168.1.11": "back"}
	if len(cfg.CameraNames) != len(expected) {
		t.Fatalf("expected %d camera names, got %v", len(expected), cfg.CameraNames)
	}
	for ip, name := range expected {
		if cfg.CameraNames[ip] != name {
			t.Errorf("camera %s: expected %q, got %q", ip, name, cfg.CameraNames[ip])
		}
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "abc")
	t.Setenv("CUSTOM_CONFIDENCE", "high")
	t.Setenv("ALERT_INTERVAL", "soon")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected fallback port, got %d", cfg.Port)
	}
	if cfg.CustomConfidence != 0.5 {
		t.Errorf("expected fallback confidence, got %v", cfg.CustomConfidence)
	}
	if cfg.AlertInterval != 10*time.Second {
		t.Errorf("expected fallback interval, got %v", cfg.AlertInterval)
	}
}
