// Package main is the entry point for the proxysync daemon.
package main

import (
	"os"

	"github.com/stacklok/proxysync/cmd/proxysync/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
