// Package main is the entry point for the momo CLI.
//
// momo runs the offline side of the intent pipeline: synthesizing labelled
// queries, building the label registry, training checkpoints, cleaning
// support transcripts and harvesting served predictions back into data.
//
// Usage:
//
//	momo [command] [flags]
package main

import (
	"os"

	"momo-intent-backend/cmd/momo/app"
)

func main() {
	cmd := app.NewMomoCommand()
	if err := cmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
