package main

import (
	"os"

	"github.com/rustyeddy/simtrader/cmd/simtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
