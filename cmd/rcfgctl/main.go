// Package main is the entry point for rcfgctl, the remote-config engine's
// debug and operations CLI.
package main

import (
	"context"
	"os"
)

func main() {
	if err := execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
