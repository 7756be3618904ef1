package main

import (
	"github.com/mev-engine/evm-arb-engine/internal/cli"
)

func main() {
	cli.Execute()
}
