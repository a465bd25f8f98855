package main

import (
	"github.com/findy-network/findy-issuer-agent/cmd"
)

func main() {
	cmd.Execute()
}
