// Package main is the single-binary entrypoint for the Gearfall engine.
package main

import "github.com/gearfall-games/gearfall/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
