package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func isolateRunnerEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("SWAPFLOW_QUOTE_API_KEY", "")
	t.Setenv("SWAPFLOW_QUOTE_BASE_URL", "")
	t.Setenv("SWAPFLOW_RPC_URL", "")
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("swapflow review status"); got != "review status" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestVersionCommand(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "0.1.0") {
		t.Fatalf("unexpected version output: %s", stdout.String())
	}
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"definitely-not-a-command"})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, stderr.String())
	}
	var env map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, stderr.String())
	}
	if env["success"] != false {
		t.Fatalf("expected success=false, got %v", env["success"])
	}
	errBody, _ := env["error"].(map[string]any)
	if errBody["type"] != "usage_error" {
		t.Fatalf("expected usage_error, got %v", errBody)
	}
}

func TestConflictingOutputFlags(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version", "--json", "--plain"})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d stdout=%s", code, stdout.String())
	}
}

func TestQuoteCommandAgainstServer(t *testing.T) {
	isolateRunnerEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"amountOut": "50000000000000000",
			"routing":   "CLASSIC",
		})
	}))
	defer server.Close()
	t.Setenv("SWAPFLOW_QUOTE_BASE_URL", server.URL)
	t.Setenv("SWAPFLOW_QUOTE_API_KEY", "test-key")

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{
		"quote", "--from", "USDC", "--to", "WETH", "--amount", "100000000", "--results-only",
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var data map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	out, _ := data["output_amount"].(map[string]any)
	if out["amount_base_units"] != "50000000000000000" {
		t.Fatalf("unexpected output amount: %v", data)
	}
	if out["amount_decimal"] != "0.05" {
		t.Fatalf("unexpected output decimal: %v", out)
	}
	if data["route"] != "CLASSIC" {
		t.Fatalf("unexpected route: %v", data["route"])
	}
}

func TestQuoteCommandRequiresAPIKey(t *testing.T) {
	isolateRunnerEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"quote", "--from", "USDC", "--to", "WETH", "--amount", "100000000"})
	if code != 10 {
		t.Fatalf("expected auth exit code 10, got %d stderr=%s", code, stderr.String())
	}
}

func TestTxlogListEmptyStore(t *testing.T) {
	isolateRunnerEnv(t)
	dir := t.TempDir()
	t.Setenv("SWAPFLOW_TXLOG_PATH", filepath.Join(dir, "txlog.db"))
	t.Setenv("SWAPFLOW_TXLOG_LOCK_PATH", filepath.Join(dir, "txlog.lock"))

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"txlog", "list", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var records []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if len(records) != 0 {
		t.Fatalf("expected empty log, got %v", records)
	}
}

func TestDisplayEmptySlot(t *testing.T) {
	isolateRunnerEnv(t)
	dir := t.TempDir()
	t.Setenv("SWAPFLOW_TXLOG_PATH", filepath.Join(dir, "txlog.db"))
	t.Setenv("SWAPFLOW_TXLOG_LOCK_PATH", filepath.Join(dir, "txlog.lock"))

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"display", "--results-only"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var data map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &data); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout.String())
	}
	if data["has_transaction"] != false {
		t.Fatalf("expected empty display slot, got %v", data)
	}
}
