package main

import (
	"os"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/cmd/trader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
