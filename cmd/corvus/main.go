package main

import (
	"github.com/corvusmta/corvus/cmd/corvus/commands"
)

func main() {
	commands.Execute()
}
