package main

import (
	"fmt"
	"os"

	appLog "jarviscal/internal/log"
)

func main() {
	err := newRootCmd().Execute()
	appLog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
