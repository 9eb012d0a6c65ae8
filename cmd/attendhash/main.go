package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/attendhash/internal/attendcli"
)

func main() {
	if err := attendcli.Execute(os.Args[1:]); err != nil {
		switch {
		case errors.Is(err, attendcli.ErrUsage):
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			attendcli.PrintUsage(os.Stderr)
			os.Exit(2)
		case errors.Is(err, attendcli.ErrFlowFailed):
			os.Exit(1)
		}
		log.Fatal(err)
	}
}
