package main

import "codearena/cmd"

func main() {
	cmd.Execute()
}
