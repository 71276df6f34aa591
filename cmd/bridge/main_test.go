package main

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("INFOSCREEN_CONFIG")
	defer os.Setenv("INFOSCREEN_CONFIG", originalEnv)

	os.Setenv("INFOSCREEN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("INFOSCREEN_CONFIG")
	defer os.Setenv("INFOSCREEN_CONFIG", originalEnv)

	os.Setenv("INFOSCREEN_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("INFOSCREEN_CONFIG", "/etc/infoscreen/config.yaml")
	if got := getConfigPath(); got != "/etc/infoscreen/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
