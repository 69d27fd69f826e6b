package main

import (
	"os"

	"github.com/Liuhangfung/get-allassets/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
