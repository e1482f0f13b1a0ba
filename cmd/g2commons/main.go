package main

import (
	"os"

	"github.com/g2commons/g2commons/internal/cli"
)

func main() {
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
