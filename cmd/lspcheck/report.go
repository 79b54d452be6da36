package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

type fileReport struct {
	File        string                `yaml:"file"`
	Diagnostics []protocol.Diagnostic `yaml:"diagnostics"`
}

var severityColors = map[protocol.DiagnosticSeverity]string{
	protocol.SeverityError:       "\x1b[31m",
	protocol.SeverityWarning:     "\x1b[33m",
	protocol.SeverityInformation: "\x1b[34m",
	protocol.SeverityHint:        "\x1b[2m",
}

const colorReset = "\x1b[0m"

// hasProblems reports whether any diagnostic is a warning or an error.
func hasProblems(reports []fileReport) bool {
	for _, r := range reports {
		for _, d := range r.Diagnostics {
			if d.Severity == protocol.SeverityError || d.Severity == protocol.SeverityWarning {
				return true
			}
		}
	}
	return false
}

// writeText prints one line per diagnostic with 1-based positions.
func writeText(w io.Writer, reports []fileReport, color bool) error {
	for _, r := range reports {
		for _, d := range r.Diagnostics {
			severity := d.Severity.String()
			if color {
				severity = severityColors[d.Severity] + severity + colorReset
			}
			_, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s\n",
				r.File, d.Range.Start.Line+1, d.Range.Start.Character+1, severity, d.Message)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func writeYAML(w io.Writer, reports []fileReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
