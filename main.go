package main

import (
	"os"

	"github.com/harrisonrobin/ajanda/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
