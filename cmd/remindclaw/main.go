// Package main is the entry point for the remindclaw binary.
// It delegates immediately to the CLI command tree.
package main

import (
	"context"
	"os"

	"github.com/neoclaw-ai/remindclaw/internal/cli"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		if cli.IsFirstRun(err) {
			return
		}
		logging.Logger().Error("fatal error", "err", err)
		os.Exit(1)
	}
}
