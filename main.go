// ./main.go
package main

import (
	"github.com/minsu-cho/declarepass/cmd"
)

// main is the entry point for the declarepass application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
