package main

import (
	"github.com/dyike/CortexDash/internal/cli"
)

func main() {
	cli.Run()
}
