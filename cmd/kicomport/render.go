package main

import (
	"fmt"
	"io"
	"os"

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
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	var tag string
	switch kind {
	case statusOK:
		tag = "OK"
	case statusWarn:
		tag = "WARN"
	case statusError:
		tag = "ERROR"
	default:
		tag = "INFO"
	}
	line := fmt.Sprintf("  %-18s [%s]", label+":", tag)
	if message != "" {
		line += " " + message
	}
	if colorize {
		switch kind {
		case statusOK:
			return ansiGreen + line + ansiReset
		case statusWarn:
			return ansiYellow + line + ansiReset
		case statusError:
			return ansiRed + line + ansiReset
		}
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
