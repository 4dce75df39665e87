package main

import "github.com/go-authgate/mcpgate/cmd"

func main() {
	cmd.Execute()
}
