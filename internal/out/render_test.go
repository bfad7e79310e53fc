package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ggonzalez94/swapflow/internal/config"
	"github.com/ggonzalez94/swapflow/internal/model"
)

func statusEnvelope() model.Envelope {
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data: model.ReviewStatus{
			State:       "ready",
			ButtonKind:  "ready",
			ButtonLabel: "Review swap",
			InputSymbol: "USDC",
		},
	}
}

func TestRenderJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, statusEnvelope(), config.Settings{OutputMode: "json"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if decoded["success"] != true {
		t.Fatalf("unexpected envelope: %v", decoded)
	}
}

func TestRenderPlainLine(t *testing.T) {
	var buf bytes.Buffer
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	if err := Render(&buf, statusEnvelope(), settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "button_label=Review swap") || !strings.Contains(line, "state=ready") {
		t.Fatalf("unexpected plain output: %s", line)
	}
}

func TestRenderSelectFields(t *testing.T) {
	var buf bytes.Buffer
	settings := config.Settings{OutputMode: "json", ResultsOnly: true, SelectFields: []string{"state"}}
	if err := Render(&buf, statusEnvelope(), settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(decoded) != 1 || decoded["state"] != "ready" {
		t.Fatalf("unexpected projection: %v", decoded)
	}
}
