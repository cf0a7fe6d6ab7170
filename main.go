package main

import "soundgrid/cmd"

func main() {
	cmd.Execute()
}
