package main

import "chime/cmd/chime/cmd"

func main() {
	cmd.Execute()
}
