package main

import (
	"os"

	"github.com/lgili/stacklens/cmd/stacklens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
