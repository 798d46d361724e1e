package main

import (
	"fmt"
	"os"

	"github.com/autorca/autorca-core/cmd/autorca/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
