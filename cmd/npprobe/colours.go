package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	colorInfo    = color.New(color.FgCyan)
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed)
	colorLabel   = color.New(color.Bold)
)

func setupColor(disable bool) {
	if disable || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}
