package main

// ---------------------------------------------------------------------------
// main.go — command dispatcher for the ctxguard CLI
//
// This file is intentionally slim. Command implementations live in their own
// files (cmd_*.go).
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
)

var (
	version   = "0.3.0"
	commit    = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	subcmd := os.Args[1]
	args := os.Args[2:]

	switch subcmd {
	case "run":
		cmdRun(args)
	case "status":
		cmdStatus(args)
	case "baseline":
		cmdBaseline(args)
	case "version", "--version", "-V":
		printVersion(os.Stdout)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", subcmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func printVersion(w *os.File) {
	fmt.Fprintf(w, "ctxguard %s (%s, built %s)\n", version, commit, buildDate)
}

func printUsage(w *os.File) {
	fmt.Fprint(w, `ctxguard — context fusion and risk monitoring daemon

Usage:
  ctxguard run [-config path]        start the monitoring daemon
  ctxguard status [-addr host:port]  query a running daemon
  ctxguard baseline reset [-config path]
                                     clear the typing baseline (re-enrollment)
  ctxguard version                   print version information
`)
}
