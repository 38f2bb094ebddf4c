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
	ansiCyan   = "\x1b[36m"
)

const statusLabelWidth = 18

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiCyan},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	meta := statusKinds[kind]
	tag := "[" + meta.label + "]"
	if message != "" {
		tag += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if colorize && meta.color != "" {
		return meta.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) string {
	title = strings.TrimSpace(title)
	if colorize {
		return ansiCyan + title + ansiReset
	}
	return title
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
