package app

import (
	"context"
	"testing"
	"time"

	"ai-scene-narrator-service/internal/config"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		Service: config.ServiceConfig{Principal: "svc-test", GRPCPort: "0"},
		Narration: config.NarrationConfig{
			Language:              "en-US",
			SpeechRate:            1.4,
			NavigationInterval:    20 * time.Millisecond,
			ContinuousInterval:    20 * time.Millisecond,
			ContinuousHistorySize: 3,
		},
		Camera:        config.CameraConfig{Source: "mock"},
		Vision:        config.VisionConfig{Provider: "mock"},
		TTS:           config.TTSConfig{Provider: "mock"},
		STT:           config.STTConfig{Provider: "mock"},
		Store:         config.StoreConfig{InMemory: true},
		Observability: config.ObservabilityConfig{LogLevel: "error", LogFormat: "json"},
	}
}

func TestApplicationLifecycle(t *testing.T) {
	a := New(testConfig())
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if a.Ready() {
		t.Error("ready before Start")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.Ready() {
		t.Error("not ready after Start")
	}
	if a.StartupTime.IsZero() {
		t.Error("startup time not recorded")
	}

	snap := a.Orchestrator.State()
	if snap.Active {
		t.Error("narrator active without auto start")
	}
	if !snap.Online {
		t.Error("narrator starts offline")
	}

	a.Shutdown()
	if a.Ready() {
		t.Error("still ready after Shutdown")
	}
}

func TestApplicationAutoStart(t *testing.T) {
	cfg := testConfig()
	cfg.Narration.AutoStart = true

	a := New(cfg)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown()
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !a.Orchestrator.State().Active {
		t.Error("narrator not active with auto start")
	}
}

func TestStartRequiresInit(t *testing.T) {
	a := New(testConfig())
	if err := a.Start(); err == nil {
		t.Error("expected error starting without Init")
	}
}

func TestProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Configuration)
		wantErr bool
	}{
		{"all mocks", func(*config.Configuration) {}, false},
		{"empty providers default to mocks", func(c *config.Configuration) {
			c.Camera.Source, c.Vision.Provider, c.TTS.Provider, c.STT.Provider = "", "", "", ""
		}, false},
		{"file camera", func(c *config.Configuration) {
			c.Camera.Source, c.Camera.FilePath = "file", "/tmp/frame.jpg"
		}, false},
		{"exec speaker", func(c *config.Configuration) { c.TTS.Provider = "exec" }, false},
		{"openai vision", func(c *config.Configuration) {
			c.Vision.Provider, c.Vision.APIKey, c.Vision.Model = "openai", "sk-test", "gpt-4o-mini"
		}, false},
		{"gemini without key", func(c *config.Configuration) { c.Vision.Provider = "gemini" }, true},
		{"snapshot without url", func(c *config.Configuration) { c.Camera.Source = "snapshot" }, true},
		{"file without path", func(c *config.Configuration) { c.Camera.Source = "file" }, true},
		{"unknown camera", func(c *config.Configuration) { c.Camera.Source = "webcam" }, true},
		{"unknown vision", func(c *config.Configuration) { c.Vision.Provider = "claude" }, true},
		{"unknown tts", func(c *config.Configuration) { c.TTS.Provider = "say" }, true},
		{"unknown stt", func(c *config.Configuration) { c.STT.Provider = "whisper" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			a := New(cfg)
			err := a.Init(context.Background())
			defer a.Shutdown()

			if (err != nil) != tt.wantErr {
				t.Errorf("Init error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
