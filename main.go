package main

import "github.com/ZHUBoer/claude-code-sub-agent-collective/cmd"

func main() {
	cmd.Execute()
}
