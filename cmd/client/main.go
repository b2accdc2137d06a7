package main

import "github.com/mcoot/quizmatch/internal/cli"

func main() {
	cli.ExecuteClient()
}
