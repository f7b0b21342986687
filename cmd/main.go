package main

import (
	"os"

	"bazaar.com/cmd/cli"
)

func main() {
	err := cli.Run()
	if err != nil {
		os.Exit(1)
	}
}
