package main

import (
	"os"

	"github.com/dedpaste/dedpaste/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
