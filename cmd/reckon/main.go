// reckon runs the analysis pipeline from the command line.
//
// Usage:
//
//	reckon analyze document <file|dir>...
//	reckon analyze symptoms --symptoms "..." [--age 42] [--gender female]
//	reckon watch <dir>...
//	reckon db health
//	reckon analyses export --user <id> -o analyses.xlsx
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
