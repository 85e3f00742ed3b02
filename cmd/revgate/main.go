package main

import (
	"os"

	"github.com/sprite-ai/revgate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
