package main

import (
	"github.com/furyaxyz/elysium-bridge/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
