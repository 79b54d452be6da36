// Package analysis implements the line-oriented checks that produce
// diagnostics for a document.
package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

const (
	// Source is the source tag attached to every diagnostic.
	Source = "basic-lsp-server"

	// MaxLineLength is the longest line, in characters, that is not reported.
	MaxLineLength = 120
)

// RE2 word boundaries are ASCII only, so whole-word matching is done by
// isWordRune on the neighbours of each match.
var (
	todoPattern  = regexp.MustCompile(`(?i)TODO`)
	fixmePattern = regexp.MustCompile(`(?i)FIXME`)
)

// check inspects one line and appends its findings to diags.
// prev is the preceding line and hasPrev is false for the first line.
type check func(diags []protocol.Diagnostic, lineNum int, line, prev string, hasPrev bool) []protocol.Diagnostic

// checks run in this order for every line.
var checks = []check{
	checkTODO,
	checkFIXME,
	checkLineLength,
	checkDuplicate,
}

// Analyze runs every check over text and returns the diagnostics ordered by
// line, then by check. Lines are split on '\n' only; a trailing '\r' stays
// part of the line.
func Analyze(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		var prev string
		if i > 0 {
			prev = lines[i-1]
		}
		for _, c := range checks {
			diags = c(diags, i, line, prev, i > 0)
		}
	}

	return diags
}

func checkTODO(diags []protocol.Diagnostic, lineNum int, line, _ string, _ bool) []protocol.Diagnostic {
	return appendMarker(diags, todoPattern, lineNum, line,
		"TODO found: Consider addressing this item", protocol.SeverityInformation)
}

func checkFIXME(diags []protocol.Diagnostic, lineNum int, line, _ string, _ bool) []protocol.Diagnostic {
	return appendMarker(diags, fixmePattern, lineNum, line,
		"FIXME found: This requires immediate attention", protocol.SeverityWarning)
}

// appendMarker reports the first whole-word match of pattern in line.
func appendMarker(diags []protocol.Diagnostic, pattern *regexp.Regexp, lineNum int, line, message string,
	severity protocol.DiagnosticSeverity,
) []protocol.Diagnostic {
	for _, loc := range pattern.FindAllStringIndex(line, -1) {
		if !isWholeWord(line, loc[0], loc[1]) {
			continue
		}
		return append(diags, newDiagnostic(lineNum,
			utf16Len(line[:loc[0]]), utf16Len(line[:loc[1]]), message, severity))
	}
	return diags
}

func isWholeWord(line string, start, end int) bool {
	if before, _ := utf8.DecodeLastRuneInString(line[:start]); start > 0 && isWordRune(before) {
		return false
	}
	if after, _ := utf8.DecodeRuneInString(line[end:]); end < len(line) && isWordRune(after) {
		return false
	}
	return true
}

// isWordRune reports whether r continues a word: any letter, any number
// or '_'.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func checkLineLength(diags []protocol.Diagnostic, lineNum int, line, _ string, _ bool) []protocol.Diagnostic {
	length := utf16Len(line)
	if length <= MaxLineLength {
		return diags
	}
	return append(diags, newDiagnostic(lineNum, MaxLineLength, length,
		fmt.Sprintf("Line too long (%d > %d characters)", length, MaxLineLength), protocol.SeverityWarning))
}

func checkDuplicate(diags []protocol.Diagnostic, lineNum int, line, prev string, hasPrev bool) []protocol.Diagnostic {
	if !hasPrev || strings.TrimSpace(line) == "" || line != prev {
		return diags
	}
	return append(diags, newDiagnostic(lineNum, 0, utf16Len(line),
		"Duplicate line detected", protocol.SeverityInformation))
}

func newDiagnostic(line, start, end int, message string, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
		Message:  message,
		Severity: severity,
		Source:   Source,
	}
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
		s = s[size:]
	}
	return n
}
