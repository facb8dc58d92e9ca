// Package main is the entry point for the grel CLI.
package main

import (
	"os"

	"github.com/RosalindThackerByrne/grel/cmd/grel/commands"
)

func main() {
	os.Exit(commands.Execute())
}
