package main

import "github.com/killallgit/canvaschat/cmd"

func main() {
	cmd.Execute()
}
