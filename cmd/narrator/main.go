// Package main provides the scene narrator service and its admin CLI.
//
// Usage:
//
//	narrator [flags] <command> [args]
//
// Commands:
//
//	serve       - Run the narrator (HTTP control API, gRPC health, metrics)
//	people list - List remembered people
//
// Configuration is read from the environment, optionally seeded from a
// .env file (see --env-file).
package main

import (
	"fmt"
	"os"

	"ai-scene-narrator-service/cmd/narrator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
