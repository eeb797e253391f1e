package backend

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{AgentName: "A", NumWorkers: 2}
	out, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ProgressDelay != defaultProgressDelay {
		t.Fatalf("progress delay not defaulted: %v", out.ProgressDelay)
	}
	if out.Logger == nil || out.Metrics == nil {
		t.Fatalf("logger and metrics must be defaulted")
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := (&Config{NumWorkers: 1}).withDefaults(); err == nil {
		t.Fatalf("missing agent name must be rejected")
	}
	if _, err := (&Config{AgentName: "A"}).withDefaults(); err == nil {
		t.Fatalf("zero workers must be rejected")
	}
	cfg := Config{AgentName: "A", NumWorkers: 1, ProgressDelay: time.Second}
	out, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ProgressDelay != time.Second {
		t.Fatalf("explicit delay must be preserved")
	}
}

func TestConfigDeviceSplit(t *testing.T) {
	cases := map[string][]string{
		"":                nil,
		"mlx5_0":          {"mlx5_0"},
		"mlx5_0,mlx5_1":   {"mlx5_0", "mlx5_1"},
		"mlx5_0, mlx5_1":  {"mlx5_0", "mlx5_1"},
		"mlx5_0 mlx5_1":   {"mlx5_0", "mlx5_1"},
		" mlx5_0,,mlx5_1": {"mlx5_0", "mlx5_1"},
	}
	for input, want := range cases {
		cfg := Config{DeviceList: input}
		got := cfg.devices()
		if len(got) != len(want) {
			t.Fatalf("%q: got %v want %v", input, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%q: got %v want %v", input, got, want)
			}
		}
	}
}
