// Package main is the entry point for the watchzone daemon and toolkit.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "watchzone: %v\n", err)
		os.Exit(1)
	}
}
