package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	for _, key := range []string{
		"SWAPFLOW_OUTPUT", "SWAPFLOW_TIMEOUT", "SWAPFLOW_CHAIN", "SWAPFLOW_RPC_URL",
		"SWAPFLOW_QUOTE_API_KEY", "SWAPFLOW_SLIPPAGE_BPS", "SWAPFLOW_DEADLINE_TTL",
		"SWAPFLOW_NO_SIMULATE", "SWAPFLOW_MAX_FEE_GWEI",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" || settings.Chain != "ethereum" {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
	if settings.SlippageBps != 50 || settings.DeadlineTTL != 20*time.Minute {
		t.Fatalf("unexpected swap defaults: %+v", settings)
	}
	if !settings.Simulate || settings.GasMultiplier != 1.2 {
		t.Fatalf("unexpected gas defaults: %+v", settings)
	}
	if settings.TxlogPath == "" || settings.TxlogLockPath == "" {
		t.Fatal("expected default txlog paths")
	}
}

func TestLoadFileConfig(t *testing.T) {
	isolateEnv(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "swapflow")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := `
output: plain
chain: base
rpc:
  url: https://rpc.example.org
quote:
  api_key: file-key
swap:
  slippage_bps: 100
  deadline_ttl: 10m
gas:
  simulate: false
  max_fee_gwei: "40"
`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" || settings.Chain != "base" {
		t.Fatalf("file config not applied: %+v", settings)
	}
	if settings.RPCURL != "https://rpc.example.org" || settings.QuoteAPIKey != "file-key" {
		t.Fatalf("file config not applied: %+v", settings)
	}
	if settings.SlippageBps != 100 || settings.DeadlineTTL != 10*time.Minute {
		t.Fatalf("swap section not applied: %+v", settings)
	}
	if settings.Simulate || settings.MaxFeeGwei != "40" {
		t.Fatalf("gas section not applied: %+v", settings)
	}
}

func TestEnvOverridesFileAndFlagsOverrideEnv(t *testing.T) {
	isolateEnv(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "swapflow")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("chain: base\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SWAPFLOW_CHAIN", "arbitrum")
	t.Setenv("SWAPFLOW_QUOTE_API_KEY", "env-key")

	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Chain != "arbitrum" || settings.QuoteAPIKey != "env-key" {
		t.Fatalf("env override not applied: %+v", settings)
	}

	settings, err = Load(GlobalFlags{Retries: -1, Chain: "optimism", SlippageBps: 75})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.Chain != "optimism" || settings.SlippageBps != 75 {
		t.Fatalf("flag override not applied: %+v", settings)
	}
}

func TestLoadRejectsConflictingOutputFlags(t *testing.T) {
	isolateEnv(t)
	if _, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1}); err == nil {
		t.Fatal("expected conflicting output flags error")
	}
}
