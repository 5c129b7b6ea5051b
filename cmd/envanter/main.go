package main

import (
	"os"

	"envanter/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
