package main

import (
	"os"

	"github.com/toolmeta/toolregistry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
