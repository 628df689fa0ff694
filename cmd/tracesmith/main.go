package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := suggestionFor(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Suggestion: %s\n", hint)
		}
		os.Exit(1)
	}
}
