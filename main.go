package main

import "github.com/urbantwin/hybridsim/cmd"

func main() {
	cmd.Execute()
}
