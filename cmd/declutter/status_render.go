package main

import (
	"fmt"
	"io"
	"strings"

	"declutter/internal/logging"
	"declutter/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const (
	statusLabelWidth = 24
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		tag += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", tag)
	if !colorize {
		return line
	}
	return statusKindColor(kind) + line + ansiReset
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "FAIL"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiCyan
	}
}

// preflightLine maps a check result onto a status line. Failures of checks
// named in soft are shown as warnings.
func preflightLine(result preflight.Result, soft map[string]bool, colorize bool) string {
	kind := statusOK
	if !result.Passed {
		kind = statusError
		if soft[result.Name] {
			kind = statusWarn
		}
	}
	return renderStatusLine(result.Name, kind, result.Detail, colorize)
}

func writeSection(out io.Writer, title string, lines []string, colorize bool) {
	header := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(header))
	if colorize {
		header = ansiCyan + header + ansiReset
		rule = ansiCyan + rule + ansiReset
	}
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, rule)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func shouldColorize(writer io.Writer) bool {
	return logging.IsTerminal(writer)
}
