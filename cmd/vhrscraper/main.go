package main

import (
	"context"
	"vhrscraper/cmd/vhrscraper/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
