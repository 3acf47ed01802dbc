package main

import (
	"os"

	"github.com/AdrianGrassin/p1DAA/cmd/matrixprod/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
