package main

import "github.com/iksnae/agent-stream/cmd"

func main() {
	cmd.Execute()
}
