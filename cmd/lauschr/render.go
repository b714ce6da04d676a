package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type findingKind int

const (
	findingOK findingKind = iota
	findingWarn
	findingError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
)

const fieldLabelWidth = 14

// renderFinding formats one validation result line.
func renderFinding(kind findingKind, message string, colorize bool) string {
	var label, color string
	switch kind {
	case findingWarn:
		label, color = "WARN", ansiYellow
	case findingError:
		label, color = "ERROR", ansiRed
	default:
		label, color = "OK", ansiGreen
	}
	line := fmt.Sprintf("  [%s] %s", label, message)
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func renderHeading(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len([]rune(title)))
	if colorize {
		title = ansiBold + title + ansiReset
	}
	return []string{title, rule}
}

// renderFields prints label/value pairs, skipping empty values.
func renderFields(out io.Writer, pairs [][2]string) {
	for _, pair := range pairs {
		if strings.TrimSpace(pair[1]) == "" {
			continue
		}
		fmt.Fprintf(out, "%-*s %s\n", fieldLabelWidth, pair[0]+":", pair[1])
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON prints v as indented JSON for --json output. HTML in show notes
// is written as is.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
