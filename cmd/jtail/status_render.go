package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
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
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// statusPrinter renders the aligned "label: [KIND] message" lines of
// `jtail status`, colored when writing to a terminal.
type statusPrinter struct {
	colorize bool
}

func newStatusPrinter(w io.Writer) statusPrinter {
	return statusPrinter{colorize: shouldColorize(w)}
}

func (p statusPrinter) line(label string, kind statusKind, message string) string {
	style := statusStyles[kind]
	out := fmt.Sprintf("%s%-*s [%s]", statusIndent, statusLabelWidth, label+":", style.label)
	if message != "" {
		out += " " + message
	}
	return p.paint(style.color, out)
}

func (p statusPrinter) section(title string) []string {
	header := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	return []string{p.paint(ansiBlue, header), p.paint(ansiBlue, strings.Repeat("-", len(header)))}
}

func (p statusPrinter) paint(color, s string) string {
	if !p.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
