package protocol

import (
	"encoding/json"
	"testing"
)

func TestDiagnosticSeverity(t *testing.T) {
	severities := []DiagnosticSeverity{
		SeverityError,
		SeverityWarning,
		SeverityInformation,
		SeverityHint,
	}

	for i, s := range severities {
		if s != DiagnosticSeverity(i+1) {
			t.Errorf("Severity mismatch: got %d, want %d", s, i+1)
		}
	}
}

func TestDiagnosticSeverityString(t *testing.T) {
	if got := SeverityWarning.String(); got != "warning" {
		t.Errorf("String mismatch: got %s, want warning", got)
	}
	if got := DiagnosticSeverity(9).String(); got != "unknown" {
		t.Errorf("String mismatch: got %s, want unknown", got)
	}
}

func TestRange(t *testing.T) {
	r := Range{
		Start: Position{Line: 0, Character: 0},
		End:   Position{Line: 1, Character: 5},
	}

	if r.Start.Line != 0 {
		t.Errorf("Start line mismatch: got %d, want %d", r.Start.Line, 0)
	}
	if r.End.Character != 5 {
		t.Errorf("End character mismatch: got %d, want %d", r.End.Character, 5)
	}
}

func TestContentChangeRangeOmitted(t *testing.T) {
	data, err := json.Marshal(TextDocumentContentChangeEvent{Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"text":"x"}` {
		t.Errorf("Marshal mismatch: got %s, want {\"text\":\"x\"}", data)
	}
}

func TestPublishDiagnosticsEmptyArray(t *testing.T) {
	data, err := json.Marshal(PublishDiagnosticsParams{URI: "file:///a", Diagnostics: []Diagnostic{}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"uri":"file:///a","diagnostics":[]}`
	if string(data) != want {
		t.Errorf("Marshal mismatch: got %s, want %s", data, want)
	}
}

func TestMethodNames(t *testing.T) {
	want := map[string]string{
		MethodInitialize:         "initialize",
		MethodInitialized:        "initialized",
		MethodShutdown:           "shutdown",
		MethodExit:               "exit",
		MethodDidOpen:            "textDocument/didOpen",
		MethodDidChange:          "textDocument/didChange",
		MethodDidClose:           "textDocument/didClose",
		MethodDidSave:            "textDocument/didSave",
		MethodPublishDiagnostics: "textDocument/publishDiagnostics",
	}
	for got, name := range want {
		if got != name {
			t.Errorf("Method name mismatch: got %s, want %s", got, name)
		}
	}
}
