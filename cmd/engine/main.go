// Command engine is the adaptengine CLI entry point.
package main

import (
	"os"

	"github.com/lexiloop/adaptengine/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
