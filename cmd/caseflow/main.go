package main

import (
	"os"

	"github.com/venus-kyc/caseflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
