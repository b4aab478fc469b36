package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/lexbrief/internal/cli"
	"github.com/ppiankov/lexbrief/internal/model"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, model.ErrConfiguration) || errors.Is(err, model.ErrInvalidSource) || errors.Is(err, model.ErrInvalidSession) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
