package main

import (
	"context"
	"os"

	"github.com/okian/earworms/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
