package main

import (
	"fmt"
	"os"

	"github.com/hive-corporation/iocagg/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stdout, "❌ %v\n", err)
	}
}
