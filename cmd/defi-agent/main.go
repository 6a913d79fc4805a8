package main

import (
	"os"

	"github.com/mrivas/defi-agent/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
