package main

import (
	"os"

	"github.com/5nail000/MT5-Trading-Dashboard-2/cmd/dashctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
