// Command stablecoin runs the stablecoin operation services and answers
// read-only questions about tokens from the command line.
//
// All configuration comes from the environment; see config.go.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
