package main

import (
	"os"

	"github.com/thiagokokada/git-filegraph/cmd"
)

func main() {
	os.Exit(cmd.Run())
}
