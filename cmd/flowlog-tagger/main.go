package main

import (
	"os"

	"flowlog-tagger/internal/app"
	"flowlog-tagger/internal/config"
)

var (
	// version is meant to be overridden at build time via -ldflags.
	version = "dev"
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(1)
	}

	os.Exit(app.Run(cfg, version))
}
