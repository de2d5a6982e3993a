// Command propctl is the operator CLI: offline rule calculations, API key
// hashing and database migrations.
package main

import (
	"os"

	"github.com/alanyoungcy/polyprop/cmd/propctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
