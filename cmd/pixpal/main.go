// Package main is the entry point for the pixpal CLI.
//
// Usage:
//
//	pixpal [flags] <command> [subcommand] [args]
//
// Commands:
//
//	config     - Configuration management (contexts)
//	chat       - Interactive chat over the streaming engine
//	serve      - Run the device gateway
//	history    - Browse archived conversations
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/mirubo/pixpal/cmd/pixpal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
