package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = orig
	}()

	runErr := fn()
	_ = w.Close()
	out := make([]byte, 0, 4096)
	buf := make([]byte, 4096)
	for {
		n, readErr := r.Read(buf)
		out = append(out, buf[:n]...)
		if readErr != nil {
			break
		}
	}
	if runErr != nil {
		t.Fatalf("command: %v", runErr)
	}
	return string(out)
}

func writeTinyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "backbone.yaml")
	payload := []byte("width_per_group: 4\nstem_out_channels: 4\nres2_out_channels: 8\nseed: 5\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestArchsCommand(t *testing.T) {
	out := captureStdout(t, func() error {
		return run(context.Background(), []string{"archs"})
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 13 {
		t.Fatalf("unexpected architecture count: got=%d want=13\n%s", len(lines), out)
	}
}

func TestArchsCommandJSON(t *testing.T) {
	out := captureStdout(t, func() error {
		return run(context.Background(), []string{"archs", "--json"})
	})
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(names) != 13 {
		t.Fatalf("unexpected architecture count: got=%d want=13", len(names))
	}
}

func TestDescribeCommand(t *testing.T) {
	path := writeTinyConfig(t)
	out := captureStdout(t, func() error {
		return run(context.Background(), []string{"describe", "--config", path})
	})
	if !strings.Contains(out, "architecture=R-50-C4") || !strings.Contains(out, "out_channels=32") {
		t.Fatalf("unexpected describe output:\n%s", out)
	}
	if !strings.Contains(out, "layer3") {
		t.Fatalf("stage lines missing:\n%s", out)
	}
}

func TestBuildCommand(t *testing.T) {
	path := writeTinyConfig(t)
	out := captureStdout(t, func() error {
		return run(context.Background(), []string{
			"build", "--config", path, "--store", "memory", "--snapshot",
			"--log-level", "error",
		})
	})
	if !strings.Contains(out, "build=") || !strings.Contains(out, "snapshot=") {
		t.Fatalf("unexpected build output:\n%s", out)
	}
}

func TestForwardCommand(t *testing.T) {
	path := writeTinyConfig(t)
	out := captureStdout(t, func() error {
		return run(context.Background(), []string{
			"forward", "--config", path, "--store", "memory",
			"--height", "32", "--width", "32",
			"--log-level", "error",
		})
	})
	if !strings.Contains(out, "feature[0] shape=[1 32 2 2]") {
		t.Fatalf("unexpected forward output:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected usage error")
	}
}

func TestMissingCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected usage error")
	}
}
