package main

import (
	cmd "github.com/rohmanhakim/datacache/internal/cli"
)

func main() {
	cmd.Execute()
}
