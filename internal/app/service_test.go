package app

import (
	"context"
	"path/filepath"
	"testing"

	"alertflow/internal/clock"
	"alertflow/internal/config"
	"alertflow/internal/domain"
)

func quietConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Console.Enabled = false
	cfg.Log.File.Enabled = true
	cfg.Log.File.Path = filepath.Join(t.TempDir(), "service.log")
	return cfg
}

func TestNewServiceSingleMode(t *testing.T) {
	t.Parallel()

	cfg := quietConfig(t)
	cfg.API.Enabled = true

	service, err := NewService(cfg, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(service.cleanupInitResources)

	alert, err := service.Engine().CreateAlert(context.Background(), domain.AlertInput{
		Level:     domain.LevelWarning,
		Component: "api",
		Title:     "latency",
	})
	if err != nil || alert == nil {
		t.Fatalf("expected engine wired for creates, got %+v err=%v", alert, err)
	}
	if stats := service.Engine().Statistics(); stats.Active != 1 {
		t.Fatalf("expected one active alert, got %+v", stats)
	}
}

func TestNewServiceWiresVoiceChannel(t *testing.T) {
	t.Parallel()

	cfg := quietConfig(t)
	cfg.Channels.Voice.Enabled = true
	cfg.Channels.Voice.URL = "http://voice.local/say"

	service, err := NewService(cfg, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(service.cleanupInitResources)

	channels := service.dispatcher.Channels()
	if len(channels) != 1 || channels[0] != "voice" {
		t.Fatalf("expected voice channel wired, got %v", channels)
	}
}
