package main

import (
	"github.com/sidkik/launchpi/cmd"
	"github.com/sidkik/launchpi/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
