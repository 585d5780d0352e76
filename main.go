package main

import (
	"fmt"
	"os"

	"github.com/phillip-england/estatecrm/internal/crmcli"
)

func main() {
	if err := crmcli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
