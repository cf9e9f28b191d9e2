// Package main provides the entry point for the easel server.
package main

import (
	"fmt"
	"os"

	"github.com/easel-ai/easel/cmd/easel-server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
