package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ctxguard-project/ctxguard/internal/core"
	"github.com/ctxguard-project/ctxguard/internal/keystroke"
)

func cmdBaseline(args []string) {
	if len(args) < 1 || args[0] != "reset" {
		fmt.Fprintln(os.Stderr, "usage: ctxguard baseline reset [-config path]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("baseline reset", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args[1:])

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := keystroke.OpenBaselineStore(cfg.Keystroke.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening baseline store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "clearing baseline: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("typing baseline cleared — re-enrollment starts with the next keystrokes")
}
