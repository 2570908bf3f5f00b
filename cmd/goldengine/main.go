package main

import (
	"os"

	"goldengine/cmd/goldengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
