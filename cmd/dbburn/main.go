package main

import (
	"os"

	"github.com/dbburn/dbburn/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
