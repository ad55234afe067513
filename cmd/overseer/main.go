package main

import (
	"os"

	"github.com/solatis/overseer/cmd/overseer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
