package main

import "docchat-cli/cmd"

func main() {
	cmd.Execute()
}
