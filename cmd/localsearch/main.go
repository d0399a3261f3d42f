// Package main provides the entry point for the localsearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/localsearch/cmd/localsearch/cmd"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, lserrors.FormatForCLI(err))
		if lserrors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
