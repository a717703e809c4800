package main

import (
	"os"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/cli"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], config.Load))
}
