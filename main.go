package main

import (
	"os"

	"github.com/statusdoc/statusdoc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
