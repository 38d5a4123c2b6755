package main

import (
	"os"

	"github.com/rustyeddy/intraday/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
