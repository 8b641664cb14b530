package main

import (
	"os"

	"github.com/trii-invest/insightd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
