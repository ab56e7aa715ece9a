package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setGrpcEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REASONING_BACKEND", "grpc")
	t.Setenv("REASONING_ADDR", "reasoner:50051")
}

func TestLoadDefaults(t *testing.T) {
	setGrpcEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.Turn.LockMode != "queue" || cfg.Turn.MaxReasoningRounds != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Guardrail.Backend != GuardrailReasoning || cfg.Guardrail.ReportMode != "assume" {
		t.Fatalf("guardrail defaults = %+v", cfg.Guardrail)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("empty FRONTEND_URL should be development")
	}
	if diff := cmp.Diff([]string{"*"}, cfg.Origins()); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	setGrpcEnv(t)
	t.Setenv("FRONTEND_URL", "https://desk.example.com")
	t.Setenv("ALLOWED_ORIGINS", "https://desk.example.com, https://ops.example.com")
	t.Setenv("TURN_LOCK_MODE", "reject")
	t.Setenv("TURN_LOCK_TIMEOUT", "5s")
	t.Setenv("CACHE_IDLE_TTL", "10m")
	t.Setenv("GUARDRAIL_BACKEND", "keyword")
	t.Setenv("GUARDRAIL_REPORT_MODE", "evaluate")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IsDevelopment() {
		t.Fatal("public FRONTEND_URL should not be development")
	}
	want := []string{"https://desk.example.com", "https://ops.example.com"}
	if diff := cmp.Diff(want, cfg.Origins()); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Turn.LockMode != "reject" || cfg.Turn.LockTimeout != 5*time.Second || cfg.Cache.IdleTTL != 10*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown backend":   {"REASONING_BACKEND": "magic"},
		"ark without model": {"REASONING_BACKEND": "ark", "ARK_API_KEY": "k"},
		"ark without keys":  {"REASONING_BACKEND": "ark", "ARK_MODEL": "m"},
		"bad lock mode":     {"REASONING_BACKEND": "grpc", "TURN_LOCK_MODE": "yolo"},
		"bad report mode":   {"REASONING_BACKEND": "grpc", "GUARDRAIL_REPORT_MODE": "sometimes"},
		"zero rounds":       {"REASONING_BACKEND": "grpc", "MAX_REASONING_ROUNDS": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
				t.Fatalf("Load() error = %v, want invalid configuration", err)
			}
		})
	}
}

func TestGetEnvDurationFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")
	if got := getEnvDuration("SOME_DURATION", time.Second); got != time.Second {
		t.Fatalf("getEnvDuration() = %v", got)
	}
}
